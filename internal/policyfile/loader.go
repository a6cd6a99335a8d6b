// Package policyfile loads sshdo's policy files: a main file plus a sibling
// drop-in directory, into a Tree, a TrainingSet, and Settings (§3, §4.2).
package policyfile

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raforg/sshdo/internal/pattern"
)

// DefaultMainPath and DefaultDropinDir are the platform-conventional
// locations named in §6.
const (
	DefaultMainPath  = "/etc/sshdoers"
	DefaultDropinDir = "/etc/sshdoers.d"
)

// Policy bundles the parsed tree, training set, and settings — everything
// the decision engine and the learn/unlearn drivers need (§3 "lifecycle").
type Policy struct {
	Tree     *Tree
	Training *TrainingSet
	Settings Settings
}

// Load reads the main policy file at settings.ConfigPath and every
// eligible file in dropinDir (sorted, dotfiles skipped), returning the
// assembled Policy together with every Issue encountered. Load never
// returns an error itself — an unreadable or malformed file becomes an
// Issue and loading continues with whatever could be read, matching the
// forced-command path's "continue with whatever has been loaded so far"
// tolerance (§4.2, §7 tier 2).
func Load(settings Settings, dropinDir string) (*Policy, []Issue) {
	policy := &Policy{
		Tree:     NewTree(),
		Training: NewTrainingSet(),
		Settings: settings,
	}

	var issues []Issue
	singletonsSeen := make(map[string]bool)

	issues = append(issues, loadFile(settings.ConfigPath, true, policy, singletonsSeen)...)

	entries, err := os.ReadDir(dropinDir)
	if err != nil {
		if !os.IsNotExist(err) {
			issues = append(issues, errf(dropinDir, 0, "failed to read drop-in directory: %v", err))
		}
		return policy, issues
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dropinDir, name)
		issues = append(issues, loadFile(path, false, policy, singletonsSeen)...)
	}

	return policy, issues
}

// loadFile parses one policy file's lines into policy, returning any
// issues encountered. isMain marks the main file: a main-file-only
// directive found in a drop-in is reported as an error (§3 invariant 4).
// A global training directive is then ignored; a match, syslog, logfiles
// or banner directive still takes effect.
func loadFile(path string, isMain bool, policy *Policy, singletonsSeen map[string]bool) []Issue {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !isMain {
			return nil
		}
		return []Issue{errf(path, 0, "failed to open policy file: %v", err)}
	}
	defer f.Close()

	var issues []Issue
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		issues = append(issues, parseLine(raw, path, lineNum, isMain, policy, singletonsSeen)...)
	}
	if err := scanner.Err(); err != nil {
		issues = append(issues, errf(path, lineNum, "failed to read policy file: %v", err))
	}
	return issues
}

func parseLine(line, file string, lineNum int, isMain bool, policy *Policy, singletonsSeen map[string]bool) []Issue {
	fields := strings.Fields(line)
	keyword := strings.ToLower(fields[0])

	switch keyword {
	case "training":
		return parseTraining(line, file, lineNum, isMain, policy)
	case "match":
		return parseMatch(line, file, lineNum, isMain, policy, singletonsSeen)
	case "syslog":
		return parseSyslog(line, file, lineNum, isMain, policy, singletonsSeen)
	case "logfiles":
		return parseLogfiles(line, file, lineNum, isMain, policy)
	case "banner":
		return parseBanner(line, file, lineNum, isMain, policy, singletonsSeen)
	default:
		return parseAuthorisation(line, file, lineNum, policy)
	}
}

func restAfterKeyword(line string) string {
	fields := strings.SplitN(line, " ", 2)
	if len(fields) < 2 {
		return ""
	}
	return strings.TrimSpace(fields[1])
}

func requireMain(isMain bool, file string, lineNum int, directive string) *Issue {
	if isMain {
		return nil
	}
	issue := errf(file, lineNum, "%q is only permitted in the main policy file", directive)
	return &issue
}

func parseTraining(line, file string, lineNum int, isMain bool, policy *Policy) []Issue {
	rest := restAfterKeyword(line)
	if rest == "" {
		if issue := requireMain(isMain, file, lineNum, "training"); issue != nil {
			return []Issue{*issue}
		}
		policy.Training.Global = true
		return nil
	}

	principals, err := ParsePrincipalList(rest)
	if err != nil {
		return []Issue{errf(file, lineNum, "invalid training directive: %v", err)}
	}
	for _, pl := range principals {
		policy.Training.Add(pl.Principal, pl.Label)
	}
	return nil
}

func parseMatch(line, file string, lineNum int, isMain bool, policy *Policy, seen map[string]bool) []Issue {
	var issues []Issue
	if issue := requireMain(isMain, file, lineNum, "match"); issue != nil {
		issues = append(issues, *issue)
	}
	rest := restAfterKeyword(line)
	style, ok := pattern.ParseStyle(rest)
	if !ok {
		return append(issues, errf(file, lineNum, "unknown match style %q", rest))
	}
	if seen["match"] {
		issues = append(issues, warnf(file, lineNum, "\"match\" repeated; last one wins"))
	}
	seen["match"] = true
	policy.Settings.Style = style
	return issues
}

func parseSyslog(line, file string, lineNum int, isMain bool, policy *Policy, seen map[string]bool) []Issue {
	var issues []Issue
	if issue := requireMain(isMain, file, lineNum, "syslog"); issue != nil {
		issues = append(issues, *issue)
	}
	rest := restAfterKeyword(line)
	facility, ok := ParseFacility(rest)
	if !ok {
		return append(issues, errf(file, lineNum, "unknown syslog facility %q", rest))
	}
	if seen["syslog"] {
		issues = append(issues, warnf(file, lineNum, "\"syslog\" repeated; last one wins"))
	}
	seen["syslog"] = true
	policy.Settings.Facility = facility
	return issues
}

func parseLogfiles(line, file string, lineNum int, isMain bool, policy *Policy) []Issue {
	var issues []Issue
	if issue := requireMain(isMain, file, lineNum, "logfiles"); issue != nil {
		issues = append(issues, *issue)
	}
	rest := restAfterKeyword(line)
	globs := strings.Fields(rest)
	if len(globs) == 0 {
		return append(issues, errf(file, lineNum, "\"logfiles\" requires at least one glob pattern"))
	}
	policy.Settings.LogGlobs = append(policy.Settings.LogGlobs, globs...)
	return issues
}

func parseBanner(line, file string, lineNum int, isMain bool, policy *Policy, seen map[string]bool) []Issue {
	var issues []Issue
	if issue := requireMain(isMain, file, lineNum, "banner"); issue != nil {
		issues = append(issues, *issue)
	}
	rest := restAfterKeyword(line)
	if rest == "" {
		return append(issues, errf(file, lineNum, "\"banner\" requires a path"))
	}
	if seen["banner"] {
		issues = append(issues, warnf(file, lineNum, "\"banner\" repeated; last one wins"))
	}
	seen["banner"] = true
	policy.Settings.BannerPath = rest
	return issues
}

func parseAuthorisation(line, file string, lineNum int, policy *Policy) []Issue {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return []Issue{errf(file, lineNum, "unrecognised directive: %q", line)}
	}
	principalsPart := strings.TrimSpace(line[:idx])
	cmdPart := strings.TrimSpace(line[idx+1:])

	if principalsPart == "" {
		return []Issue{errf(file, lineNum, "authorisation directive has no principals")}
	}

	principals, err := ParsePrincipalList(principalsPart)
	if err != nil {
		return []Issue{errf(file, lineNum, "invalid principal list: %v", err)}
	}

	cmd, err := DecodeCommandField(cmdPart)
	if err != nil {
		return []Issue{errf(file, lineNum, "invalid command field: %v", err)}
	}

	for _, pl := range principals {
		policy.Tree.Add(pl.Principal, pl.Label, cmd)
	}
	return nil
}
