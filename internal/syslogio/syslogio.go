// Package syslogio writes audit records to the system log. It wraps
// log/syslog behind a small interface so tests can substitute an in-memory
// writer instead of talking to a real syslogd — the same "interface plus
// real implementation plus fake for tests" shape the teacher uses for its
// process and filesystem boundaries (runner.go's use of exec.Cmd behind a
// narrow interface).
package syslogio

import (
	"fmt"
	"log/syslog"

	"github.com/raforg/sshdo/internal/auditlog"
	"github.com/raforg/sshdo/internal/policyfile"
)

// Writer emits one already-rendered audit payload at a given priority.
type Writer interface {
	Info(msg string) error
	Err(msg string) error
	Close() error
}

// SyslogWriter writes to the real system logger via log/syslog, tagged
// auditlog.ProgName and using the configured facility (§4.4, §6).
type SyslogWriter struct {
	w *syslog.Writer
}

// Dial opens a connection to the local syslog daemon for the given
// facility.
func Dial(facility policyfile.Facility) (*SyslogWriter, error) {
	prio := facilityPriority(facility)
	w, err := syslog.New(prio, auditlog.ProgName)
	if err != nil {
		return nil, fmt.Errorf("connect to syslog: %w", err)
	}
	return &SyslogWriter{w: w}, nil
}

func (s *SyslogWriter) Info(msg string) error { return s.w.Info(msg) }
func (s *SyslogWriter) Err(msg string) error  { return s.w.Err(msg) }
func (s *SyslogWriter) Close() error          { return s.w.Close() }

// facilityPriority maps a configured Facility to the base syslog.Priority
// log/syslog expects at Dial time; the actual info/err severity is added
// per call by Info/Err.
func facilityPriority(f policyfile.Facility) syslog.Priority {
	switch f {
	case policyfile.FacilityAuth:
		return syslog.LOG_AUTH
	case policyfile.FacilityDaemon:
		return syslog.LOG_DAEMON
	case policyfile.FacilityUser:
		return syslog.LOG_USER
	case policyfile.FacilityLocal0:
		return syslog.LOG_LOCAL0
	case policyfile.FacilityLocal1:
		return syslog.LOG_LOCAL1
	case policyfile.FacilityLocal2:
		return syslog.LOG_LOCAL2
	case policyfile.FacilityLocal3:
		return syslog.LOG_LOCAL3
	case policyfile.FacilityLocal4:
		return syslog.LOG_LOCAL4
	case policyfile.FacilityLocal5:
		return syslog.LOG_LOCAL5
	case policyfile.FacilityLocal6:
		return syslog.LOG_LOCAL6
	case policyfile.FacilityLocal7:
		return syslog.LOG_LOCAL7
	default:
		return syslog.LOG_AUTH
	}
}

// Log renders rec and writes it at the priority §4.4 assigns it: info for
// allowed, err for everything else (training and disallowed both page the
// sort of attention an error does).
func Log(w Writer, rec auditlog.Record) error {
	msg := rec.Render()
	if rec.IsInfo() {
		return w.Info(msg)
	}
	return w.Err(msg)
}

// MemoryWriter is a test double that records every call instead of talking
// to syslogd.
type MemoryWriter struct {
	Infos  []string
	Errs   []string
	Closed bool
}

func (m *MemoryWriter) Info(msg string) error {
	m.Infos = append(m.Infos, msg)
	return nil
}

func (m *MemoryWriter) Err(msg string) error {
	m.Errs = append(m.Errs, msg)
	return nil
}

func (m *MemoryWriter) Close() error {
	m.Closed = true
	return nil
}
