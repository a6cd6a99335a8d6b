package policyfile

import "github.com/raforg/sshdo/internal/pattern"

// Facility enumerates the syslog facilities a main policy file may select
// (§3).
type Facility string

const (
	FacilityAuth    Facility = "auth"
	FacilityDaemon  Facility = "daemon"
	FacilityUser    Facility = "user"
	FacilityLocal0  Facility = "local0"
	FacilityLocal1  Facility = "local1"
	FacilityLocal2  Facility = "local2"
	FacilityLocal3  Facility = "local3"
	FacilityLocal4  Facility = "local4"
	FacilityLocal5  Facility = "local5"
	FacilityLocal6  Facility = "local6"
	FacilityLocal7  Facility = "local7"
)

var validFacilities = map[Facility]struct{}{
	FacilityAuth: {}, FacilityDaemon: {}, FacilityUser: {},
	FacilityLocal0: {}, FacilityLocal1: {}, FacilityLocal2: {}, FacilityLocal3: {},
	FacilityLocal4: {}, FacilityLocal5: {}, FacilityLocal6: {}, FacilityLocal7: {},
}

// ParseFacility validates a "syslog" directive's argument, case-insensitive.
func ParseFacility(s string) (Facility, bool) {
	f := Facility(toLowerASCII(s))
	_, ok := validFacilities[f]
	return f, ok
}

// DefaultLogGlobs is the platform default for the "logfiles" setting when
// none is configured (§3). Unix-y systems keep rotated auth logs under
// /var/log; this is the conventional location the spec names.
var DefaultLogGlobs = []string{"/var/log/auth.log*"}

// Settings is the flat record described in §3: syslog facility, match
// style, banner path, log-file globs, and the resolved config path used to
// stamp audit records.
type Settings struct {
	Facility    Facility
	Style       pattern.Style
	BannerPath  string
	LogGlobs    []string
	ConfigPath  string
	// DefaultConfigPath is the path that would be used absent any
	// SSHDO_CONFIG/--config override; audit records only carry an explicit
	// "config" field when ConfigPath differs from this (§4.4).
	DefaultConfigPath string
}

// DefaultSettings returns the settings in force before any directive is
// read: auth facility, digits match style, no banner, default log globs.
func DefaultSettings(defaultConfigPath string) Settings {
	return Settings{
		Facility:          FacilityAuth,
		Style:             pattern.Digits,
		LogGlobs:          nil,
		ConfigPath:        defaultConfigPath,
		DefaultConfigPath: defaultConfigPath,
	}
}

// EffectiveLogGlobs returns the configured log globs, or the platform
// default if none were set (§3).
func (s Settings) EffectiveLogGlobs() []string {
	if len(s.LogGlobs) == 0 {
		return DefaultLogGlobs
	}
	return s.LogGlobs
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
