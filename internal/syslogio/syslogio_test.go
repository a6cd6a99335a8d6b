package syslogio

import (
	"testing"

	"github.com/raforg/sshdo/internal/auditlog"
)

func TestLogRoutesByPriority(t *testing.T) {
	w := &MemoryWriter{}

	if err := Log(w, auditlog.Record{Type: "allowed", User: "alice", Command: "ls"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := Log(w, auditlog.Record{Type: "disallowed", User: "bob", Command: "rm -rf /"}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := Log(w, auditlog.Record{Type: "training", User: "carol", Command: "uptime"}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	if len(w.Infos) != 1 {
		t.Fatalf("want 1 info entry, got %d", len(w.Infos))
	}
	if len(w.Errs) != 2 {
		t.Fatalf("want 2 err entries, got %d", len(w.Errs))
	}
}
