// Package learnengine implements the learn and unlearn drivers (§4.7, §4.8):
// turning accumulated audit log records into proposed additions to, or
// removals from, the policy file. Log files are read one at a time, one
// line at a time, matching §5's "single-threaded, synchronous, no internal
// concurrency" invariant; the coalescing pass that follows is
// order-independent but still runs single-threaded.
package learnengine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raforg/sshdo/internal/auditlog"
	"github.com/raforg/sshdo/internal/coalesce"
	"github.com/raforg/sshdo/internal/decision"
	"github.com/raforg/sshdo/internal/gzreader"
	"github.com/raforg/sshdo/internal/pattern"
	"github.com/raforg/sshdo/internal/policyfile"
	"github.com/raforg/sshdo/internal/principal"
)

// ResolveFiles returns the log files to read: the explicit list if given,
// else every file the active settings' globs expand to (§4.7 step 2).
func ResolveFiles(explicit []string, settings policyfile.Settings) []string {
	if len(explicit) > 0 {
		return explicit
	}
	var out []string
	for _, g := range settings.EffectiveLogGlobs() {
		matches, err := filepath.Glob(g)
		if err != nil {
			continue
		}
		out = append(out, matches...)
	}
	return out
}

// readFile streams one log file (or stdin, for "-") and returns every
// candidate audit record it contains, in file order.
func readFile(path string) ([]auditlog.Record, error) {
	if path == "-" {
		var out []auditlog.Record
		s := bufio.NewScanner(os.Stdin)
		s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for s.Scan() {
			if rec, ok := auditlog.ParseLine(s.Text()); ok {
				out = append(out, rec)
			}
		}
		return out, s.Err()
	}

	scanner, closeFn, err := gzreader.Open(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var out []auditlog.Record
	for scanner.Scan() {
		if rec, ok := auditlog.ParseLine(scanner.Text()); ok {
			out = append(out, rec)
		}
	}
	return out, scanner.Err()
}

// readAll reads every file in order, one at a time, and returns their
// records concatenated in input-file order (§5: no internal concurrency).
func readAll(files []string) ([]auditlog.Record, error) {
	var all []auditlog.Record
	for _, f := range files {
		recs, err := readFile(f)
		if err != nil {
			return nil, fmt.Errorf("read log file %s: %w", f, err)
		}
		all = append(all, recs...)
	}
	return all, nil
}

// configMatches implements §4.7 step 3's config-path filter: a record with
// no config field matches only when the active path is already the
// default; otherwise the record's config field must equal the active path
// verbatim.
func configMatches(recordConfig string, settings policyfile.Settings) bool {
	if recordConfig == "" {
		return settings.ConfigPath == settings.DefaultConfigPath
	}
	return recordConfig == settings.ConfigPath
}

func principalKeyFor(record auditlog.Record) string {
	var p policyfile.Principal
	if record.Group == "" {
		p = policyfile.Principal{Kind: policyfile.KindUser, Name: record.User}
	} else {
		p = policyfile.Principal{Kind: policyfile.KindGroup, Name: record.Group}
	}
	return p.StringWithLabel(record.Label)
}

// setObsMark records (cmd, principalKey) -> mark in obs, letting an
// existing Allow mark prevail over an incoming Disallow (§4.7 step 4's
// "if a principal is observed allowed once and disallowed once, the
// allowed mark prevails"). This is independent of, and happens before,
// coalesce's own mode-dependent tie-break, which only arbitrates conflicts
// introduced by merging digit-generalised commands together.
func setObsMark(obs coalesce.Observations, cmd, principalKey string, mark coalesce.Mark) {
	m := obs[cmd]
	if m == nil {
		m = make(map[string]coalesce.Mark)
		obs[cmd] = m
	}
	if existing, ok := m[principalKey]; ok {
		if existing == coalesce.Allow || mark == coalesce.Allow {
			m[principalKey] = coalesce.Allow
			return
		}
	}
	m[principalKey] = mark
}

// Result is what a learn or unlearn run produces: the policy-file-syntax
// lines to append. Learn and Unlearn leave Issues empty; a log file that
// cannot be read makes them return an error instead.
type Result struct {
	Lines  []string
	Issues []policyfile.Issue
}

// Learn implements §4.7.
func Learn(policy *policyfile.Policy, cache *pattern.Cache, lookup principal.Lookuper, files []string, accepting bool) (Result, error) {
	resolved := ResolveFiles(files, policy.Settings)
	records, err := readAll(resolved)
	if err != nil {
		return Result{}, err
	}
	return LearnFromRecords(policy, cache, lookup, records, accepting), nil
}

// LearnFromRecords is Learn's core, taking already-parsed records directly
// so tests need not go through real log files.
func LearnFromRecords(policy *policyfile.Policy, cache *pattern.Cache, lookup principal.Lookuper, records []auditlog.Record, accepting bool) Result {
	obs := make(coalesce.Observations)
	for _, rec := range records {
		if !configMatches(rec.Config, policy.Settings) {
			continue
		}
		if rec.Type != auditlog.TypeTraining && rec.Type != auditlog.TypeDisallowed {
			continue
		}

		id, lookupErr := lookup.Lookup(rec.User)
		if lookupErr == nil {
			label := rec.Label
			cmd := rec.Command
			if decision.Decide(policy, cache, id, label, cmd).IsAllowed() {
				continue
			}
		}

		interactive := rec.Command == policyfile.Interactive
		var mark coalesce.Mark
		switch {
		case interactive:
			// Interactive sessions always take "# ", even under training --
			// §4.7 step 4 overrides the training-type case unconditionally.
			mark = coalesce.Disallow
		case rec.Type == auditlog.TypeTraining:
			mark = coalesce.Allow
		case accepting:
			mark = coalesce.Allow
		default:
			mark = coalesce.Disallow
		}

		setObsMark(obs, rec.Command, principalKeyFor(rec), mark)
	}

	coalesced := coalesce.Coalesce(obs, policy.Settings.Style, coalesce.Learn)
	return Result{Lines: renderLines(coalesced)}
}

// Unlearn implements §4.8.
func Unlearn(policy *policyfile.Policy, cache *pattern.Cache, files []string, accepting bool) (Result, error) {
	resolved := ResolveFiles(files, policy.Settings)
	records, err := readAll(resolved)
	if err != nil {
		return Result{}, err
	}
	return UnlearnFromRecords(policy, cache, records, accepting), nil
}

// UnlearnFromRecords is Unlearn's core, taking already-parsed records.
func UnlearnFromRecords(policy *policyfile.Policy, cache *pattern.Cache, records []auditlog.Record, accepting bool) Result {
	// used[user][label] = set of observed commands.
	used := make(map[string]map[string]map[string]struct{})
	addUsed := func(user, label, cmd string) {
		if used[user] == nil {
			used[user] = make(map[string]map[string]struct{})
		}
		if used[user][label] == nil {
			used[user][label] = make(map[string]struct{})
		}
		used[user][label][cmd] = struct{}{}
	}

	for _, rec := range records {
		if !configMatches(rec.Config, policy.Settings) {
			continue
		}
		if rec.Command == policyfile.Interactive {
			continue
		}
		keep := rec.Type == auditlog.TypeAllowed || rec.Type == auditlog.TypeTraining ||
			(accepting && rec.Type == auditlog.TypeDisallowed)
		if !keep {
			continue
		}
		addUsed(rec.User, rec.Label, rec.Command)
	}

	style := policy.Settings.Style
	current := make(coalesce.Observations)
	for _, key := range policy.Tree.Keys() {
		patterns := policy.Tree.Patterns(key.Principal, key.Label)
		for _, patternText := range patterns {
			mark := coalesce.Disallow
			if entryStillUsed(key.Principal, key.Label, patternText, used, cache, style) {
				mark = coalesce.Allow
			}
			setObsMark(current, patternText, key.Principal.StringWithLabel(key.Label), mark)
		}
	}

	coalesced := coalesce.Coalesce(current, style, coalesce.Unlearn)
	return Result{Lines: renderLines(coalesced)}
}

// entryStillUsed implements §4.8 step 5.
func entryStillUsed(p policyfile.Principal, label, patternText string, used map[string]map[string]map[string]struct{}, cache *pattern.Cache, style pattern.Style) bool {
	if p.Kind == policyfile.KindNegUser {
		return true
	}

	byLabel := used[p.Name]
	if byLabel == nil {
		return false
	}

	if observed, ok := byLabel[label]; ok && anyMatches(cache, patternText, observed, style) {
		return true
	}

	if label == policyfile.AnyLabel {
		for _, observed := range byLabel {
			if anyMatches(cache, patternText, observed, style) {
				return true
			}
		}
	}
	return false
}

func anyMatches(cache *pattern.Cache, patternText string, observed map[string]struct{}, style pattern.Style) bool {
	compiled := cache.Compile(patternText, style)
	for cmd := range observed {
		if compiled.Match(cmd) {
			return true
		}
	}
	return false
}

// renderLines implements §4.7 step 6 / §4.8 step 8.
func renderLines(obs coalesce.Observations) []string {
	cmds := make([]string, 0, len(obs))
	for cmd := range obs {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)

	var lines []string
	for _, cmd := range cmds {
		marks := obs[cmd]
		var allowed, disallowed []string
		for p, m := range marks {
			if m == coalesce.Allow {
				allowed = append(allowed, p)
			} else {
				disallowed = append(disallowed, p)
			}
		}
		allowed = suppressNarrower(allowed)
		disallowed = suppressNarrower(disallowed)

		encoded := policyfile.EncodeCommandField(cmd)
		if len(allowed) > 0 {
			lines = append(lines, strings.Join(allowed, " ")+": "+encoded)
		}
		if len(disallowed) > 0 {
			lines = append(lines, "# "+strings.Join(disallowed, " ")+": "+encoded)
		}
	}
	return lines
}

// suppressNarrower drops a principal/label entry when the same principal
// also appears in the same mark group under the "any label" form — §4.7
// step 6's "avoid redundancy" rule.
func suppressNarrower(principals []string) []string {
	if len(principals) == 0 {
		return nil
	}
	hasAny := make(map[string]bool)
	for _, p := range principals {
		name, label := splitLabel(p)
		if label == "" {
			hasAny[name] = true
		}
	}

	out := make([]string, 0, len(principals))
	for _, p := range principals {
		name, label := splitLabel(p)
		if label != "" && hasAny[name] {
			continue
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func splitLabel(p string) (name, label string) {
	if idx := strings.IndexByte(p, '/'); idx >= 0 {
		return p[:idx], p[idx+1:]
	}
	return p, ""
}
