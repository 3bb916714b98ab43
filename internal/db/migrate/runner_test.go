package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"

	"activity-compliance-plane/backend/internal/db"
)

func TestRunRequiresDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %q, should point at DATABASE_URL", err)
	}
}

func TestRunRejectsUnknownDirection(t *testing.T) {
	for _, direction := range []string{"", "sideways", "UP", "Down"} {
		t.Run("direction="+direction, func(t *testing.T) {
			err := Run("postgres://localhost/acp", direction)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", direction)
			}
			if !strings.Contains(err.Error(), "direction") {
				t.Errorf("error = %q, should name the bad direction", err)
			}
		})
	}
}

// Every .up.sql must have a matching .down.sql so `-direction down` can
// always unwind what up applied.
func TestEmbeddedMigrationsPairUpAndDown(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("reading embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no embedded migrations found")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
	for base := range ups {
		if !downs[base] {
			t.Errorf("migration %s has no down counterpart", base)
		}
	}
	for base := range downs {
		if !ups[base] {
			t.Errorf("migration %s has no up counterpart", base)
		}
	}
	if !ups["0001_init"] {
		t.Error("initial schema migration 0001_init is missing")
	}
}

// The iofs source driver must accept the embedded FS and expose the initial
// schema as version 1; this is exactly what Run hands to golang-migrate.
func TestSourceDriverSeesInitialMigration(t *testing.T) {
	drv, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("iofs source over embedded migrations: %v", err)
	}
	defer drv.Close()

	first, err := drv.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if first != 1 {
		t.Fatalf("first migration version = %d, want 1", first)
	}

	up, _, err := drv.ReadUp(first)
	if err != nil {
		t.Fatalf("ReadUp(1): %v", err)
	}
	defer up.Close()
}
