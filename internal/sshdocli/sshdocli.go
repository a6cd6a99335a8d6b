// Package sshdocli implements sshdo's dual personality: the forced-command
// gatekeeper invoked by sshd, and the small admin CLI used to check, learn,
// and unlearn a policy (§6). It mirrors the teacher's cmd/<tool> + internal
// runner split: main.go stays a thin dispatcher, Main carries the logic and
// returns an *ExitCodeError when a specific status is required.
package sshdocli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"strings"

	"github.com/raforg/sshdo/internal/auditlog"
	"github.com/raforg/sshdo/internal/decision"
	"github.com/raforg/sshdo/internal/learnengine"
	"github.com/raforg/sshdo/internal/pattern"
	"github.com/raforg/sshdo/internal/policyfile"
	"github.com/raforg/sshdo/internal/principal"
	"github.com/raforg/sshdo/internal/shellexec"
	"github.com/raforg/sshdo/internal/syslogio"
)

// ExitCodeError carries a specific process exit status through Main's
// return value, the same shape the teacher's runner package uses to avoid
// flattening every failure to exit code 1.
type ExitCodeError struct {
	code int
}

func (e *ExitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *ExitCodeError) ExitCode() int { return e.code }

// Version is set by main via -ldflags, as the teacher's cmd/leash does.
var Version = "dev"

var errShowUsage = errors.New("show usage")

const progName = "sshdo"

// Main dispatches to the admin CLI (when args[1] looks like a flag) or the
// forced-command path (otherwise). args must include argv[0].
func Main(args []string) error {
	if len(args) > 1 && strings.HasPrefix(args[1], "-") {
		return runAdmin(args)
	}
	return runForcedCommand(args)
}

// --- Admin CLI ---------------------------------------------------------

type adminOpts struct {
	help       bool
	version    bool
	config     string
	check      bool
	learn      bool
	unlearn    bool
	accepting  bool
}

func parseAdminArgs(args []string) (adminOpts, []string, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var o adminOpts
	fs.BoolVar(&o.help, "h", false, "show usage")
	fs.BoolVar(&o.help, "help", false, "show usage")
	fs.BoolVar(&o.version, "V", false, "show version")
	fs.BoolVar(&o.version, "version", false, "show version")
	fs.StringVar(&o.config, "C", "", "policy file path")
	fs.StringVar(&o.config, "config", "", "policy file path")
	fs.BoolVar(&o.check, "c", false, "check policy and report issues")
	fs.BoolVar(&o.check, "check", false, "check policy and report issues")
	fs.BoolVar(&o.learn, "l", false, "learn from log records")
	fs.BoolVar(&o.learn, "learn", false, "learn from log records")
	fs.BoolVar(&o.unlearn, "u", false, "unlearn unused authorisations")
	fs.BoolVar(&o.unlearn, "unlearn", false, "unlearn unused authorisations")
	fs.BoolVar(&o.accepting, "a", false, "accept disallowed records during learn/unlearn")
	fs.BoolVar(&o.accepting, "accepting", false, "accept disallowed records during learn/unlearn")

	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return o, nil, errShowUsage
		}
		return o, nil, err
	}
	if o.help {
		return o, fs.Args(), errShowUsage
	}
	return o, fs.Args(), nil
}

func usage() string {
	return fmt.Sprintf(`Usage: %s [--config PATH] --check|--learn|--unlearn [--accepting] [FILES...]
       %s [--help] [--version]
       %s [LABEL]   (forced-command invocation; set by sshd's ForceCommand)

Flags:
  -h, --help        show this message
  -V, --version     show version
  -C, --config PATH policy file to use instead of %s
  -c, --check       report every issue in the named FILES (each checked standalone
                     as a candidate main policy file), or the installed policy
                     if no FILES are given; exit with the issue count
  -l, --learn       suggest authorisations from training/disallowed records in
                     the named log FILES, or the configured logfiles if none given
  -u, --unlearn     suggest removing authorisations unused in the named log FILES,
                     or the configured logfiles if none given
  -a, --accepting   during learn, also accept disallowed commands; during unlearn,
                     also count disallowed commands as usage
`, progName, progName, progName, policyfile.DefaultMainPath)
}

func runAdmin(args []string) error {
	opts, files, err := parseAdminArgs(args)
	if errors.Is(err, errShowUsage) {
		fmt.Print(usage())
		return nil
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return &ExitCodeError{1}
	}
	if opts.help {
		fmt.Print(usage())
		return nil
	}
	if opts.version {
		fmt.Printf("%s %s\n", progName, Version)
		return nil
	}

	modes := 0
	for _, b := range []bool{opts.check, opts.learn, opts.unlearn} {
		if b {
			modes++
		}
	}
	if modes > 1 {
		fmt.Fprintln(os.Stderr, "error: --check, --learn, and --unlearn are mutually exclusive")
		return &ExitCodeError{1}
	}
	if opts.accepting && !opts.learn && !opts.unlearn {
		fmt.Fprintln(os.Stderr, "error: --accepting requires --learn or --unlearn")
		return &ExitCodeError{1}
	}
	if modes == 0 {
		fmt.Print(usage())
		return nil
	}

	if opts.check {
		return runCheck(opts.config, files)
	}

	settings, dropinDir := resolveSettings(opts.config)
	policy, _ := policyfile.Load(settings, dropinDir)

	switch {
	case opts.learn:
		return runLearn(policy, files, opts.accepting)
	case opts.unlearn:
		return runUnlearn(policy, files, opts.accepting)
	}
	return nil
}

func resolveSettings(flagConfig string) (policyfile.Settings, string) {
	defaultPath := policyfile.DefaultMainPath
	active := defaultPath
	if env := os.Getenv("SSHDO_CONFIG"); env != "" {
		active = env
	}
	if flagConfig != "" {
		active = flagConfig
	}
	settings := policyfile.DefaultSettings(defaultPath)
	settings.ConfigPath = active
	return settings, active + ".d"
}

// runCheck validates a policy and reports every issue found. With no file
// arguments it checks the installed policy (--config/SSHDO_CONFIG/default
// main file plus its drop-in directory), the same settings resolution used
// at runtime. With one or more file arguments it instead checks each named
// file standalone, as a candidate main policy file together with its own
// sibling drop-in directory (<file>.d) -- the conventional "dry-run
// validate this draft before installing it" reading of §6's
// "--check|-c [files…]" (the installed policy is not consulted at all in
// this mode).
func runCheck(flagConfig string, files []string) error {
	var issues []policyfile.Issue
	if len(files) == 0 {
		settings, dropinDir := resolveSettings(flagConfig)
		policy, loadIssues := policyfile.Load(settings, dropinDir)
		issues = collectCheckIssues(policy, loadIssues)
	} else {
		for _, f := range files {
			settings := policyfile.DefaultSettings(policyfile.DefaultMainPath)
			settings.ConfigPath = f
			policy, loadIssues := policyfile.Load(settings, f+".d")
			issues = append(issues, collectCheckIssues(policy, loadIssues)...)
		}
	}

	return reportIssues(issues)
}

// reportIssues prints every issue and turns the total count into --check's
// exit status: 0 if there were none, else the count capped at 255 (§6's
// "Persisted state" line).
func reportIssues(issues []policyfile.Issue) error {
	for _, issue := range issues {
		fmt.Fprintln(os.Stderr, issue.String())
	}

	n := len(issues)
	if n > 255 {
		n = 255
	}
	if n == 0 {
		return nil
	}
	return &ExitCodeError{n}
}

func collectCheckIssues(policy *policyfile.Policy, loadIssues []policyfile.Issue) []policyfile.Issue {
	issues := append([]policyfile.Issue{}, loadIssues...)
	issues = append(issues, policyfile.CheckClashes(policy)...)
	issues = append(issues, checkUnknownPrincipals(policy)...)
	issues = append(issues, checkBanner(policy)...)
	issues = append(issues, checkLogGlobs(policy)...)
	return issues
}

func checkUnknownPrincipals(policy *policyfile.Policy) []policyfile.Issue {
	var issues []policyfile.Issue
	lookup := principal.OSLookuper{}
	for _, p := range policy.Tree.Principals() {
		switch p.Kind {
		case policyfile.KindGroup:
			if !groupExists(p.Name) {
				issues = append(issues, policyfile.NewWarning(policy.Settings.ConfigPath, 0,
					fmt.Sprintf("unknown group %q", p.Name)))
			}
		default:
			if _, err := lookup.Lookup(p.Name); err != nil {
				issues = append(issues, policyfile.NewWarning(policy.Settings.ConfigPath, 0,
					fmt.Sprintf("unknown user %q", p.Name)))
			}
		}
	}
	return issues
}

func checkBanner(policy *policyfile.Policy) []policyfile.Issue {
	if policy.Settings.BannerPath == "" {
		return nil
	}
	if _, err := os.Stat(policy.Settings.BannerPath); err != nil {
		return []policyfile.Issue{policyfile.NewWarning(policy.Settings.ConfigPath, 0,
			fmt.Sprintf("banner %q is missing or unreadable: %v", policy.Settings.BannerPath, err))}
	}
	return nil
}

func checkLogGlobs(policy *policyfile.Policy) []policyfile.Issue {
	var issues []policyfile.Issue
	for _, g := range policy.Settings.EffectiveLogGlobs() {
		matches := learnengine.ResolveFiles(nil, policyfile.Settings{LogGlobs: []string{g}})
		if len(matches) == 0 {
			issues = append(issues, policyfile.NewWarning(policy.Settings.ConfigPath, 0,
				fmt.Sprintf("logfiles glob %q matches no files", g)))
		}
	}
	return issues
}

func runLearn(policy *policyfile.Policy, files []string, accepting bool) error {
	result, err := learnengine.Learn(policy, pattern.NewCache(), principal.OSLookuper{}, files, accepting)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return &ExitCodeError{1}
	}
	for _, line := range result.Lines {
		fmt.Println(line)
	}
	return nil
}

func runUnlearn(policy *policyfile.Policy, files []string, accepting bool) error {
	result, err := learnengine.Unlearn(policy, pattern.NewCache(), files, accepting)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return &ExitCodeError{1}
	}
	for _, line := range result.Lines {
		fmt.Println(line)
	}
	return nil
}

// --- Forced-command path ------------------------------------------------

// normalizeLabel rewrites whitespace and ':' to '_' (§6, §8 boundary).
func normalizeLabel(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ':' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return '_'
		}
		return r
	}, s)
}

// remoteIPFrom extracts the client IP from SSH_CLIENT ("ip port port").
func remoteIPFrom(sshClient string) string {
	if idx := strings.IndexByte(sshClient, ' '); idx >= 0 {
		return sshClient[:idx]
	}
	return sshClient
}

func runForcedCommand(args []string) error {
	label := ""
	if len(args) > 1 {
		label = normalizeLabel(args[1])
	}

	user := os.Getenv("USER")
	if user == "" {
		fmt.Fprintln(os.Stderr, "error: USER is not set")
		return &ExitCodeError{1}
	}

	origCmd, hasCmd := os.LookupEnv("SSH_ORIGINAL_COMMAND")
	interactive := !hasCmd || origCmd == ""
	cmd := origCmd
	if interactive {
		cmd = policyfile.Interactive
	}
	remoteIP := remoteIPFrom(os.Getenv("SSH_CLIENT"))

	settings, dropinDir := resolveSettings("")
	policy, issues := policyfile.Load(settings, dropinDir)

	writer, dialErr := syslogio.Dial(policy.Settings.Facility)
	if dialErr == nil {
		defer writer.Close()
		for _, issue := range issues {
			syslogio.Log(writer, configErrorRecord(issue))
		}
	}

	cache := pattern.NewCache()
	lookup := principal.OSLookuper{}
	id, idErr := lookup.Lookup(user)
	if idErr != nil {
		id = principal.Identity{Username: user}
	}

	outcome := decision.Decide(policy, cache, id, label, cmd)

	rec := auditlog.Record{
		Type:     outcomeRecordType(outcome),
		User:     user,
		RemoteIP: remoteIP,
		Label:    label,
		Command:  cmd,
	}
	if outcome.Kind == decision.AllowedByGroup || outcome.Kind == decision.TrainingByGroup {
		rec.Group = outcome.Group
	}
	if policy.Settings.ConfigPath != policy.Settings.DefaultConfigPath {
		rec.Config = policy.Settings.ConfigPath
	}
	if dialErr == nil {
		syslogio.Log(writer, rec)
	}

	if !outcome.IsAllowed() {
		printBanner(policy.Settings.BannerPath)
		return &ExitCodeError{1}
	}

	err := shellexec.Replace(cmd, interactive)
	// Replace only returns on failure; a success replaces this process.
	if dialErr == nil {
		syslogio.Log(writer, auditlog.Record{
			Type:    auditlog.TypeExecError,
			Command: cmd,
			Err:     err.Error(),
		})
	}
	fmt.Fprintf(os.Stderr, "error: exec failed: %v\n", err)
	return &ExitCodeError{1}
}

func outcomeRecordType(o decision.Outcome) string {
	switch {
	case o.Kind == decision.Disallowed:
		return auditlog.TypeDisallowed
	case o.IsTraining():
		return auditlog.TypeTraining
	default:
		return auditlog.TypeAllowed
	}
}

func configErrorRecord(issue policyfile.Issue) auditlog.Record {
	rec := auditlog.Record{Type: auditlog.TypeConfigError, Filename: issue.File}
	if issue.Line > 0 {
		rec.LineNumber = issue.Line
		rec.Line = issue.Message
	} else {
		rec.Err = issue.Message
	}
	return rec
}

func printBanner(path string) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: banner %q: %v\n", path, err)
		return
	}
	os.Stderr.Write(data)
}

func groupExists(name string) bool {
	_, err := user.LookupGroup(name)
	return err == nil
}
