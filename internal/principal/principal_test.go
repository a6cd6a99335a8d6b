package principal

import "testing"

func TestStaticLookuperReturnsSeededIdentity(t *testing.T) {
	lookuper := StaticLookuper{
		"alice": {Username: "alice", UID: 1000, Groups: []string{"alice", "wheel", "docker"}},
	}

	id, err := lookuper.Lookup("alice")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if id.Username != "alice" || id.UID != 1000 {
		t.Errorf("id = %+v, want username alice uid 1000", id)
	}
	if len(id.Groups) != 3 || id.Groups[0] != "alice" {
		t.Errorf("Groups = %v, want primary group first", id.Groups)
	}
}

func TestStaticLookuperUnknownUser(t *testing.T) {
	lookuper := StaticLookuper{}
	if _, err := lookuper.Lookup("nobody"); err == nil {
		t.Error("expected an error for an unseeded user")
	}
}
