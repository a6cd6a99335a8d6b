// Package principal resolves the local user named by the hosting daemon
// into the information the decision engine needs: username and ordered
// group membership, primary group first (§4.3, §9).
package principal

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// Identity is a resolved local user: name plus group names in kernel-
// reported order (primary group first, then supplementary groups as
// returned by getgroups(2) — §9's explicit requirement that group order
// follow the OS, not map iteration or alphabetical sort).
type Identity struct {
	Username string
	UID      int
	Groups   []string // primary first, then supplementary, de-duplicated
}

// Lookuper resolves a username to an Identity. Production code uses
// OSLookuper; tests substitute a static map (§9: "tests must seed group
// membership explicitly").
type Lookuper interface {
	Lookup(username string) (Identity, error)
}

// OSLookuper resolves identities against the real operating system, using
// os/user for the account/primary-group lookup and golang.org/x/sys/unix's
// getgroups(2) wrapper for supplementary groups in kernel order — the same
// role golang.org/x/sys/unix plays in the teacher's LSM code (there:
// unix.Stat/unix.Setrlimit; here: unix.Getgroups), because os/user's own
// group enumeration does not promise the kernel's primary-first ordering.
type OSLookuper struct{}

// Lookup resolves username via the OS's user/group databases.
func (OSLookuper) Lookup(username string) (Identity, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return Identity{}, fmt.Errorf("lookup user %q: %w", username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return Identity{}, fmt.Errorf("parse uid for %q: %w", username, err)
	}

	primaryGroup, err := user.LookupGroupId(u.Gid)
	var groups []string
	seen := make(map[string]struct{})
	if err == nil {
		groups = append(groups, primaryGroup.Name)
		seen[primaryGroup.Name] = struct{}{}
	}

	// getgroups(2) only reports the *calling* process's supplementary
	// groups; it is meaningful here because sshdo runs as the
	// already-authenticated user named by the hosting daemon, not as a
	// privileged process looking up an arbitrary third party. Callers
	// that need to resolve a different user's groups fall back to
	// user.GroupIds below.
	if gids, gerr := unix.Getgroups(); gerr == nil && uid == os.Getuid() {
		for _, gid := range gids {
			g, gerr := user.LookupGroupId(strconv.Itoa(gid))
			if gerr != nil {
				continue
			}
			if _, dup := seen[g.Name]; dup {
				continue
			}
			seen[g.Name] = struct{}{}
			groups = append(groups, g.Name)
		}
	}

	// Fall back to the portable (but unordered beyond "primary first")
	// enumeration when getgroups(2) didn't add anything — e.g. when sshdo
	// is exec'd by a daemon that already dropped to the target user via
	// initgroups, getgroups(2) above already covers it; this only helps
	// environments where it returned zero supplementary groups.
	if len(groups) <= 1 {
		if gids, gerr := u.GroupIds(); gerr == nil {
			for _, gidStr := range gids {
				g, gerr := user.LookupGroupId(gidStr)
				if gerr != nil {
					continue
				}
				if _, dup := seen[g.Name]; dup {
					continue
				}
				seen[g.Name] = struct{}{}
				groups = append(groups, g.Name)
			}
		}
	}

	return Identity{Username: u.Username, UID: uid, Groups: groups}, nil
}

// StaticLookuper is a fixed-table Lookuper for tests: it lets tests seed
// exact, ordered group membership without touching the real OS databases.
type StaticLookuper map[string]Identity

// Lookup returns the seeded Identity for username, or an error if absent.
func (m StaticLookuper) Lookup(username string) (Identity, error) {
	id, ok := m[username]
	if !ok {
		return Identity{}, fmt.Errorf("unknown user %q", username)
	}
	return id, nil
}
