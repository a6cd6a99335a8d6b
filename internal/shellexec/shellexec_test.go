package shellexec

import (
	"os"
	"testing"
)

func TestReplaceInteractiveOmitsDashC(t *testing.T) {
	origExec := ExecFunc
	origShell := os.Getenv("SHELL")
	defer func() {
		ExecFunc = origExec
		os.Setenv("SHELL", origShell)
	}()
	os.Setenv("SHELL", "/bin/bash")

	var gotArgv0, gotPath string
	var gotArgv []string
	ExecFunc = func(argv0 string, argv []string, envv []string) error {
		gotPath, gotArgv0, gotArgv = argv0, argv[0], argv
		return nil
	}

	if err := Replace("ignored", true); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if gotPath != "/bin/bash" {
		t.Errorf("path = %q, want /bin/bash", gotPath)
	}
	if gotArgv0 != "-bash" {
		t.Errorf("argv[0] = %q, want -bash (login-shell convention)", gotArgv0)
	}
	if len(gotArgv) != 1 {
		t.Errorf("argv = %v, interactive session must not append -c", gotArgv)
	}
}

func TestReplaceNonInteractiveAppendsDashC(t *testing.T) {
	origExec := ExecFunc
	origShell := os.Getenv("SHELL")
	defer func() {
		ExecFunc = origExec
		os.Setenv("SHELL", origShell)
	}()
	os.Setenv("SHELL", "/bin/zsh")

	var gotArgv []string
	ExecFunc = func(argv0 string, argv []string, envv []string) error {
		gotArgv = argv
		return nil
	}

	if err := Replace("uptime", false); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	want := []string{"-zsh", "-c", "uptime"}
	if len(gotArgv) != len(want) {
		t.Fatalf("argv = %v, want %v", gotArgv, want)
	}
	for i := range want {
		if gotArgv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, gotArgv[i], want[i])
		}
	}
}

func TestShellFallsBackToBinSh(t *testing.T) {
	origShell := os.Getenv("SHELL")
	defer os.Setenv("SHELL", origShell)
	os.Unsetenv("SHELL")

	if got := Shell(); got != "/bin/sh" {
		t.Errorf("Shell() = %q, want /bin/sh when $SHELL is unset", got)
	}
}
