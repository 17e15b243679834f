package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldserve-app/fieldserve-backend/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migration dir failed validation: %v", err)
	}
}

func TestAssignmentsMigrationEnforcesSingleActiveAssignment(t *testing.T) {
	content := readMigration(t, "*_create_assignments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS assignments",
		"FOREIGN KEY (task_id) REFERENCES service_tasks(id) ON DELETE CASCADE",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_assignments_task_active ON assignments (task_id) WHERE status = 'active'",
		"DROP TABLE IF EXISTS assignments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestServiceTasksMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_service_tasks.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS service_tasks",
		"CHECK (estimated_duration_min > 0)",
		"status task_status NOT NULL DEFAULT 'unassigned'",
		"priority task_priority NOT NULL DEFAULT 'medium'",
		"DROP TABLE IF EXISTS service_tasks",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %s", pattern)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
