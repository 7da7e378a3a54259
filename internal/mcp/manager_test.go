package mcp

import (
	"testing"

	"github.com/masc-mcp/masc/internal/config"
	"github.com/masc-mcp/masc/internal/store"
)

func memoryOpener() StoreOpener {
	stores := map[string]store.Store{}
	return func(name string) (store.Store, error) {
		if st, ok := stores[name]; ok {
			return st, nil
		}
		st := store.NewMemory()
		stores[name] = st
		return st, nil
	}
}

func TestManagerCachesRoomByName(t *testing.T) {
	mgr := NewManager(config.Defaults(), memoryOpener())
	a, err := mgr.Room("alpha")
	if err != nil {
		t.Fatal(err)
	}
	b, err := mgr.Room("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected the same *room.Room for repeated lookups of the same name")
	}
}

func TestManagerDefaultsEmptyNameToConfiguredDefaultRoom(t *testing.T) {
	cfg := config.Defaults()
	cfg.DefaultRoom = "lobby"
	mgr := NewManager(cfg, memoryOpener())
	r, err := mgr.Room("")
	if err != nil {
		t.Fatal(err)
	}
	if r.Name != "lobby" {
		t.Errorf("Name = %q, want lobby", r.Name)
	}
}

func TestManagerNamesTracksCreatedRooms(t *testing.T) {
	mgr := NewManager(config.Defaults(), memoryOpener())
	if _, err := mgr.Room("alpha"); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Room("beta"); err != nil {
		t.Fatal(err)
	}
	names := mgr.Names()
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", names)
	}
}
