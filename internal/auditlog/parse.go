package auditlog

import (
	"regexp"
	"strconv"
	"strings"
)

// valueClass matches the body of a name="value" field: anything except an
// unescaped quote or backslash, plus the three escape forms Escape emits.
const valueClass = `(?:[^"\\]|\\\\|\\"|\\x[0-9a-fA-F]{2})*`

var (
	decisionRe = regexp.MustCompile(
		`^type="(?P<type>` + valueClass + `)" user="(?P<user>` + valueClass + `)"` +
			`(?:\s+remoteip="(?P<remoteip>` + valueClass + `)")?` +
			`(?:\s+label="(?P<label>` + valueClass + `)")?` +
			`\s+command="(?P<command>` + valueClass + `)"` +
			`(?:\s+group="(?P<group>` + valueClass + `)")?` +
			`(?:\s+config="(?P<config>` + valueClass + `)")?$`,
	)
	configErrorLineRe = regexp.MustCompile(
		`^type="configerror" filename="(?P<filename>` + valueClass + `)"` +
			` linenumber="(?P<linenumber>` + valueClass + `)"` +
			` line="(?P<line>` + valueClass + `)"$`,
	)
	configErrorFileRe = regexp.MustCompile(
		`^type="configerror" filename="(?P<filename>` + valueClass + `)"` +
			` error="(?P<error>` + valueClass + `)"$`,
	)
	execErrorRe = regexp.MustCompile(
		`^type="execerror" command="(?P<command>` + valueClass + `)"` +
			` error="(?P<error>` + valueClass + `)"$`,
	)
)

// ParseLine recognises one line of a system log as an sshdo audit record.
// A line is a candidate only if it contains " sshdo[" or " sshdo:" (§4.5);
// everything else, including genuinely malformed candidates, is silently
// skipped rather than treated as an error — learn/unlearn must tolerate a
// log file shared with every other daemon on the box.
func ParseLine(line string) (Record, bool) {
	payload, ok := findPayload(line)
	if !ok {
		return Record{}, false
	}

	if m, names := matchNamed(decisionRe, payload); m != nil {
		var rec Record
		var err error
		get := func(name string) string { return lookup(m, names, name) }
		if rec.Type, err = Unescape(get("type")); err != nil {
			return Record{}, false
		}
		if rec.User, err = Unescape(get("user")); err != nil {
			return Record{}, false
		}
		if rec.RemoteIP, err = Unescape(get("remoteip")); err != nil {
			return Record{}, false
		}
		if rec.Label, err = Unescape(get("label")); err != nil {
			return Record{}, false
		}
		if rec.Command, err = Unescape(get("command")); err != nil {
			return Record{}, false
		}
		if rec.Group, err = Unescape(get("group")); err != nil {
			return Record{}, false
		}
		if rec.Config, err = Unescape(get("config")); err != nil {
			return Record{}, false
		}
		return rec, true
	}

	if m, names := matchNamed(configErrorLineRe, payload); m != nil {
		var rec Record
		var err error
		rec.Type = TypeConfigError
		if rec.Filename, err = Unescape(lookup(m, names, "filename")); err != nil {
			return Record{}, false
		}
		lnStr, err := Unescape(lookup(m, names, "linenumber"))
		if err != nil {
			return Record{}, false
		}
		if rec.LineNumber, err = strconv.Atoi(lnStr); err != nil {
			return Record{}, false
		}
		if rec.Line, err = Unescape(lookup(m, names, "line")); err != nil {
			return Record{}, false
		}
		return rec, true
	}

	if m, names := matchNamed(configErrorFileRe, payload); m != nil {
		var rec Record
		var err error
		rec.Type = TypeConfigError
		if rec.Filename, err = Unescape(lookup(m, names, "filename")); err != nil {
			return Record{}, false
		}
		if rec.Err, err = Unescape(lookup(m, names, "error")); err != nil {
			return Record{}, false
		}
		return rec, true
	}

	if m, names := matchNamed(execErrorRe, payload); m != nil {
		var rec Record
		var err error
		rec.Type = TypeExecError
		if rec.Command, err = Unescape(lookup(m, names, "command")); err != nil {
			return Record{}, false
		}
		if rec.Err, err = Unescape(lookup(m, names, "error")); err != nil {
			return Record{}, false
		}
		return rec, true
	}

	return Record{}, false
}

func matchNamed(re *regexp.Regexp, s string) ([]string, []string) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil, nil
	}
	return m, re.SubexpNames()
}

func lookup(m, names []string, name string) string {
	for i, n := range names {
		if n == name {
			return m[i]
		}
	}
	return ""
}

// findPayload locates the sshdo tag within a raw log line and returns
// everything after it, trimmed. Syslog conventionally writes either
// "tag[pid]: message" or "tag: message"; both forms are recognised.
func findPayload(line string) (string, bool) {
	marker := " " + ProgName + "["
	if idx := strings.Index(line, marker); idx >= 0 {
		rest := line[idx+len(marker):]
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return "", false
		}
		after := rest[end+1:]
		after = strings.TrimPrefix(after, ":")
		return strings.TrimSpace(after), true
	}

	marker = " " + ProgName + ":"
	if idx := strings.Index(line, marker); idx >= 0 {
		after := line[idx+len(marker):]
		return strings.TrimSpace(after), true
	}

	return "", false
}
