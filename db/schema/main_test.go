package schema

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationName = regexp.MustCompile(`^(\d{3})_([a-z0-9_]+)\.(up|down)\.sql$`)

// findProjectRoot searches for the project root directory (where go.mod is located)
// starting from the current working directory and moving upwards.
func findProjectRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err, "Failed to get working directory")

	for i := 0; i < 5; i++ { // Limit search to 5 levels up
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd
		}
		prevWd := wd
		wd = filepath.Dir(wd)
		if wd == prevWd {
			break
		}
	}
	t.Fatalf("Failed to find project root (go.mod)")
	return ""
}

func sqlFiles(t *testing.T) []string {
	t.Helper()
	migrationsPath := filepath.Join(findProjectRoot(t), "db", "schema")
	files, err := os.ReadDir(migrationsPath)
	require.NoError(t, err, "Failed to read migrations directory: %s", migrationsPath)

	var names []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			names = append(names, file.Name())
		}
	}
	require.NotEmpty(t, names, "No .sql migration files found in %s", migrationsPath)
	return names
}

// TestMigrationsNotEmpty ensures that all migration .sql files are not empty.
func TestMigrationsNotEmpty(t *testing.T) {
	for _, name := range sqlFiles(t) {
		content, err := fs.ReadFile(Migrations, name)
		require.NoError(t, err, "Migration file is not embedded: %s", name)
		require.NotEmpty(t, strings.TrimSpace(string(content)), "Migration file is empty: %s", name)
	}
}

// TestMigrationFileNames ensures that all migration files follow the
// NNN_description.up.sql / NNN_description.down.sql convention and come in pairs.
func TestMigrationFileNames(t *testing.T) {
	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, name := range sqlFiles(t) {
		m := migrationName.FindStringSubmatch(name)
		require.NotNil(t, m, "File name %q does not match NNN_description.{up,down}.sql", name)
		key := m[1] + "_" + m[2]
		if m[3] == "up" {
			ups[key] = true
		} else {
			downs[key] = true
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a matching down migration")
}
