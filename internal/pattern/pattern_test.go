package pattern

import "testing"

func TestCompileNoHashesIsLiteral(t *testing.T) {
	c := Compile("echo hello", Digits)
	if !c.Match("echo hello") {
		t.Error("exact literal should match itself")
	}
	if c.Match("echo hellox") {
		t.Error("literal matcher should not match a superstring")
	}
}

func TestCompileExactStyleNeverVariableWidth(t *testing.T) {
	c := Compile("echo #42", Exact)
	if !c.Match("echo #42") {
		t.Error("exact style should match its own literal text verbatim, '#' included")
	}
	if c.Match("echo 142") {
		t.Error("exact style must never treat '#' as a wildcard (§8 invariant)")
	}
}

func TestSingleHashMatchesLiteralHashAndDigitRun(t *testing.T) {
	c := Compile("echo #", Digits)
	cases := map[string]bool{
		"echo #":    true,
		"echo 0":    true,
		"echo 9":    true,
		"echo 1234": true,
		"echo ":     false,
		"echo a":    false,
	}
	for cmd, want := range cases {
		if got := c.Match(cmd); got != want {
			t.Errorf("Match(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestDoubleHashMatchesExactlyTwoChars(t *testing.T) {
	c := Compile("echo ##", Digits)
	cases := map[string]bool{
		"echo ##": true,
		"echo 12": true,
		"echo #3": true,
		"echo 1":  false,
		"echo 123": false,
	}
	for cmd, want := range cases {
		if got := c.Match(cmd); got != want {
			t.Errorf("Match(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestHexdigitsStyle(t *testing.T) {
	c := Compile("dd if=/dev/sd# of=/tmp/#", Hexdigits)
	if !c.Match("dd if=/dev/sda of=/tmp/ff") {
		t.Errorf("hexdigits style should accept hex digit runs")
	}
	if c.Match("dd if=/dev/sdg of=/tmp/1") {
		t.Errorf("'g' is not a hex digit; should not match")
	}
}

func TestSplitDigitRunsAlternates(t *testing.T) {
	got := SplitDigitRuns("cp /x/007 /y/42", Digits)
	want := []string{"cp /x/", "007", " /y/", "42", ""}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitDigitRunsNoDigits(t *testing.T) {
	got := SplitDigitRuns("uptime", Digits)
	if len(got) != 1 || got[0] != "uptime" {
		t.Errorf("got %v, want single-element [\"uptime\"]", got)
	}
}

func TestMatchesLiteralPresenceOrHashPattern(t *testing.T) {
	cache := NewCache()
	patterns := []string{"ls -la", "echo #"}
	if !Matches(cache, patterns, "ls -la", Digits) {
		t.Error("literal presence should match")
	}
	if !Matches(cache, patterns, "echo 7", Digits) {
		t.Error("hash pattern should match")
	}
	if Matches(cache, patterns, "rm -rf /", Digits) {
		t.Error("unrelated command should not match")
	}
}

func TestCacheReturnsSameCompiledPattern(t *testing.T) {
	cache := NewCache()
	a := cache.Compile("echo #", Digits)
	b := cache.Compile("echo #", Digits)
	if a != b {
		t.Error("Cache.Compile should return the same *Compiled for repeated (pattern, style)")
	}
}
