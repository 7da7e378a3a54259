package main

import (
	"path/filepath"
	"testing"

	"github.com/masc-mcp/masc/internal/config"
	"github.com/masc-mcp/masc/internal/store"
)

func TestNewStoreOpenerMemory(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store = config.StoreMemory
	opener, closer, err := newStoreOpener(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closer()

	st, err := opener("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*store.Memory); !ok {
		t.Errorf("opener returned %T, want *store.Memory", st)
	}
}

func TestNewStoreOpenerFilesystem(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store = config.StoreFilesystem
	cfg.RoomsDir = t.TempDir()
	opener, closer, err := newStoreOpener(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closer()

	st, err := opener("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*store.Filesystem); !ok {
		t.Errorf("opener returned %T, want *store.Filesystem", st)
	}
}

func TestNewStoreOpenerSQL(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store = config.StoreSQL
	cfg.RoomsDir = t.TempDir()
	opener, closer, err := newStoreOpener(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer closer()

	st, err := opener("alpha")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*store.SQL); !ok {
		t.Errorf("opener returned %T, want *store.SQL", st)
	}
	if _, statErr := filepath.Abs(filepath.Join(cfg.RoomsDir, "alpha", "masc.db")); statErr != nil {
		t.Fatal(statErr)
	}
}

func TestNewStoreOpenerRejectsUnknownBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.Store = "mongo"
	if _, _, err := newStoreOpener(cfg); err == nil {
		t.Error("expected an error for an unknown store backend")
	}
}
