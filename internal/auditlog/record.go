// Package auditlog renders and parses the structured audit line sshdo
// writes for every decision, and re-reads for the learn/unlearn drivers
// (§4.4, §4.5).
package auditlog

import (
	"strconv"
	"strings"
)

// ProgName is the syslog tag sshdo identifies its own lines with, and the
// substring the log-record parser looks for to recognise a candidate line
// amid everything else in a system log (§4.5).
const ProgName = "sshdo"

// Record type values (§4.4).
const (
	TypeAllowed     = "allowed"
	TypeDisallowed  = "disallowed"
	TypeTraining    = "training"
	TypeConfigError = "configerror"
	TypeExecError   = "execerror"
)

// Record is one audit entry. Which fields are populated depends on Type:
// the three decision types (allowed/disallowed/training) use User through
// Config; configerror uses Filename plus either LineNumber+Line or Err;
// execerror uses Command and Err.
type Record struct {
	Type     string
	User     string
	RemoteIP string
	Label    string
	Command  string
	Group    string // only set for the two group-mediated decision outcomes
	Config   string // only set when the active config path differs from the default

	Filename   string // configerror
	LineNumber int     // configerror, line-level; 0 means absent
	Line       string  // configerror, line-level
	Err        string  // configerror (file-level) and execerror
}

// IsInfo reports whether the record should be logged at "info" priority
// (allowed) rather than "err" (everything else) — §4.4's priority mapping.
func (r Record) IsInfo() bool {
	return r.Type == TypeAllowed
}

// Render produces the message payload sshdo hands to syslog: the part
// after the "sshdo[pid]: " tag that syslogd itself prepends.
func (r Record) Render() string {
	var b strings.Builder
	first := true
	field := func(name, value string) {
		if value == "" {
			return
		}
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteString(name)
		b.WriteString(`="`)
		b.WriteString(Escape(value))
		b.WriteByte('"')
	}

	switch r.Type {
	case TypeConfigError:
		field("type", r.Type)
		field("filename", r.Filename)
		if r.LineNumber > 0 {
			field("linenumber", strconv.Itoa(r.LineNumber))
			field("line", r.Line)
		} else {
			field("error", r.Err)
		}
	case TypeExecError:
		field("type", r.Type)
		field("command", r.Command)
		field("error", r.Err)
	default:
		field("type", r.Type)
		field("user", r.User)
		field("remoteip", r.RemoteIP)
		field("label", r.Label)
		field("command", r.Command)
		field("group", r.Group)
		field("config", r.Config)
	}
	return b.String()
}
