package auditlog

import "testing"

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain text",
		`has "quotes" inside`,
		`has\backslash`,
		"has\x01control\x1fchars",
		"mix \"of\\ every\x00thing\x7f",
	}
	for _, c := range cases {
		esc := Escape(c)
		got, err := Unescape(esc)
		if err != nil {
			t.Fatalf("Unescape(%q) after Escape: %v", c, err)
		}
		if got != c {
			t.Errorf("round trip mismatch: got %q, want %q (escaped form %q)", got, c, esc)
		}
	}
}

func TestEscapeQuotesAndBackslashes(t *testing.T) {
	got := Escape(`a"b\c`)
	want := `a\"b\\c`
	if got != want {
		t.Errorf("Escape = %q, want %q", got, want)
	}
}

func TestRecordRenderOmitsEmptyFields(t *testing.T) {
	r := Record{Type: "allowed", User: "alice", Command: "ls -l"}
	got := r.Render()
	want := `type="allowed" user="alice" command="ls -l"`
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRecordRenderAllFields(t *testing.T) {
	r := Record{
		Type:     "disallowed",
		User:     "bob",
		RemoteIP: "10.0.0.5",
		Label:    "deploy",
		Command:  `echo "hi"`,
		Group:    "wheel",
		Config:   "/etc/sshdoers.d/90-extra",
	}
	got := r.Render()
	want := `type="disallowed" user="bob" remoteip="10.0.0.5" label="deploy" command="echo \"hi\"" group="wheel" config="/etc/sshdoers.d/90-extra"`
	if got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestRecordIsInfo(t *testing.T) {
	if !(Record{Type: "allowed"}).IsInfo() {
		t.Error("allowed should be info")
	}
	if (Record{Type: "disallowed"}).IsInfo() {
		t.Error("disallowed should not be info")
	}
	if (Record{Type: "training"}).IsInfo() {
		t.Error("training should not be info")
	}
}

func TestParseLineRoundTrip(t *testing.T) {
	r := Record{
		Type:     "allowed",
		User:     "alice",
		RemoteIP: "192.168.1.1",
		Label:    "prod",
		Command:  `rsync -a /data/#123`,
		Group:    "ops",
	}
	line := "Aug  6 10:00:00 myhost sshdo[12345]: " + r.Render()

	got, ok := ParseLine(line)
	if !ok {
		t.Fatalf("ParseLine failed to recognise %q", line)
	}
	if got != r {
		t.Errorf("ParseLine = %+v, want %+v", got, r)
	}
}

func TestParseLineColonForm(t *testing.T) {
	rec := Record{Type: "allowed", User: "alice", Command: "ls"}
	line := "Aug  6 10:00:00 myhost sshdo: " + rec.Render()
	got, ok := ParseLine(line)
	if !ok {
		t.Fatalf("ParseLine failed to recognise colon-form line %q", line)
	}
	if got != rec {
		t.Errorf("ParseLine = %+v, want %+v", got, rec)
	}
}

func TestConfigErrorRenderAndParseLineLevel(t *testing.T) {
	rec := Record{
		Type:       TypeConfigError,
		Filename:   "/etc/sshdoers",
		LineNumber: 12,
		Line:       `alice echo "hi"`,
	}
	line := "Aug  6 10:00:00 myhost sshdo[99]: " + rec.Render()
	got, ok := ParseLine(line)
	if !ok {
		t.Fatalf("ParseLine failed to recognise %q", line)
	}
	if got != rec {
		t.Errorf("ParseLine = %+v, want %+v", got, rec)
	}
}

func TestConfigErrorRenderAndParseFileLevel(t *testing.T) {
	rec := Record{
		Type:     TypeConfigError,
		Filename: "/etc/sshdoers.d/missing",
		Err:      "no such file or directory",
	}
	line := "Aug  6 10:00:00 myhost sshdo[99]: " + rec.Render()
	got, ok := ParseLine(line)
	if !ok {
		t.Fatalf("ParseLine failed to recognise %q", line)
	}
	if got != rec {
		t.Errorf("ParseLine = %+v, want %+v", got, rec)
	}
}

func TestExecErrorRenderAndParse(t *testing.T) {
	rec := Record{
		Type:    TypeExecError,
		Command: "/bin/bash",
		Err:     "permission denied",
	}
	line := "Aug  6 10:00:00 myhost sshdo[99]: " + rec.Render()
	got, ok := ParseLine(line)
	if !ok {
		t.Fatalf("ParseLine failed to recognise %q", line)
	}
	if got != rec {
		t.Errorf("ParseLine = %+v, want %+v", got, rec)
	}
}

func TestParseLineIgnoresUnrelatedLines(t *testing.T) {
	lines := []string{
		"Aug  6 10:00:00 myhost sudo[1]: alice : TTY=pts/0 ; USER=root ; COMMAND=/bin/ls",
		"Aug  6 10:00:00 myhost sshdo[1]: not a valid payload at all",
		"",
		"just some noise",
	}
	for _, l := range lines {
		if _, ok := ParseLine(l); ok {
			t.Errorf("ParseLine unexpectedly matched %q", l)
		}
	}
}
