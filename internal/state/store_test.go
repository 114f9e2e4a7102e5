package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_MissingFileDefaultsToZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := s.Snapshot()
	if rec.GenerationCount != 0 || rec.Maintenance || rec.MaintenanceMsg != "" {
		t.Errorf("expected zero record, got %+v", rec)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.IncrementGenerations(); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.IncrementGenerations(); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if on, err := s.ToggleMaintenance("backup in progress"); err != nil || !on {
		t.Fatalf("toggle: on=%v err=%v", on, err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got := reopened.Snapshot()
	want := Record{GenerationCount: 2, Maintenance: true, MaintenanceMsg: "backup in progress"}
	if got != want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestStore_GenerationCountNeverDecreases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	prev := s.GenerationCount()
	for i := 0; i < 10; i++ {
		if err := s.IncrementGenerations(); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
		if _, err := s.ToggleMaintenance(""); err != nil {
			t.Fatalf("toggle %d: %v", i, err)
		}
		if cur := s.GenerationCount(); cur <= prev {
			t.Fatalf("count decreased: %d -> %d", prev, cur)
		} else {
			prev = cur
		}
	}
}

func TestStore_SaveWritesFullRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for _, field := range []string{"generation_count", "maintenance", "maintenance_msg"} {
		if !strings.Contains(string(data), `"`+field+`"`) {
			t.Errorf("saved record missing field %q: %s", field, data)
		}
	}
}
