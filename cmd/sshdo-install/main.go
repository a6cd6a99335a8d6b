// Command sshdo-install lays down a starter policy file, an empty drop-in
// directory, and prints the authorized_keys forced-command snippet an
// administrator needs to wire sshdo into a user's SSH key. It follows the
// same thin-main/ExitCodeError split as cmd/sshdo.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raforg/sshdo/internal/policyfile"
)

const samplePolicy = `# sshdo starter policy (see sshdo --help).
#
# Turn on global training to observe usage before writing real rules:
# training
#
# Then run "sshdo --learn" against your auth log and review the output.

syslog auth
match digits
logfiles /var/log/auth.log*
`

func main() {
	if err := run(os.Args); err != nil {
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type exitCodeError struct{ code int }

func (e *exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func run(args []string) error {
	fs := flag.NewFlagSet("sshdo-install", flag.ContinueOnError)
	configPath := fs.String("config", policyfile.DefaultMainPath, "path to write the starter policy file")
	sshdoPath := fs.String("sshdo-path", "/usr/local/bin/sshdo", "installed path of the sshdo binary")
	label := fs.String("label", "", "optional label to bake into the forced-command snippet")
	force := fs.Bool("force", false, "overwrite an existing policy file")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &exitCodeError{1}
	}

	if _, err := os.Stat(*configPath); err == nil && !*force {
		return fmt.Errorf("%s already exists; pass -force to overwrite", *configPath)
	}

	if err := os.WriteFile(*configPath, []byte(samplePolicy), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *configPath, err)
	}

	dropinDir := *configPath + ".d"
	if err := os.MkdirAll(dropinDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dropinDir, err)
	}

	forced := *sshdoPath
	if *label != "" {
		forced += " " + *label
	}
	fmt.Printf("Wrote starter policy to %s and drop-in directory %s\n\n", *configPath, dropinDir)
	fmt.Printf("Add this to the authorized_keys entry for each user who should be gated:\n\n")
	fmt.Printf("    command=%q,no-port-forwarding,no-X11-forwarding,no-agent-forwarding ssh-ed25519 AAAA...\n\n",
		forced)
	fmt.Printf("To observe usage first, uncomment \"training\" in %s; then run %q as root to propose rules from the log.\n",
		*configPath, filepath.Clean(*sshdoPath)+" --learn")
	return nil
}
