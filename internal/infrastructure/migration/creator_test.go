package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add wallets table", "add_wallets_table"},
		{"Add-Wallets-Table", "add_wallets_table"},
		{"ADD_WALLETS_TABLE", "add_wallets_table"},
		{"add__usage__ledgers", "add_usage_ledgers"},
		{"Backfill Plans 123", "backfill_plans_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	tmpDir := t.TempDir()

	mf, err := CreateMigration(tmpDir, "add wallets table", "Wallet balances per account")
	require.NoError(t, err)
	require.NotNil(t, mf)

	// version is YYYYMMDDHHMMSS
	assert.Len(t, mf.Version, 14)

	assert.True(t, strings.HasSuffix(mf.UpPath, ".up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, ".down.sql"))

	upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
	downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
	assert.Equal(t, upBase, downBase)

	upContent, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "add wallets table")
	assert.Contains(t, string(upContent), "Wallet balances per account")
	assert.Contains(t, string(upContent), "Write your UP migration SQL here")

	downContent, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "Rollback")
	assert.Contains(t, string(downContent), "Write your DOWN migration SQL here")
}

func TestCreateMigrationCreatesDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nestedPath, "init", "initial schema")
	require.NoError(t, err)
	require.NotNil(t, mf)

	info, err := os.Stat(nestedPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestListMigrations(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		"000002_add_wallets.up.sql",
		"000002_add_wallets.down.sql",
		"000001_create_accounts.up.sql",
		"000001_create_accounts.down.sql",
		"000003_add_usage_ledgers.up.sql",
		"000003_add_usage_ledgers.down.sql",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, f), []byte("-- test"), 0644))
	}

	migrations, err := ListMigrations(tmpDir)
	require.NoError(t, err)

	// one entry per pair, sorted in apply order
	assert.Equal(t, []string{
		"000001_create_accounts",
		"000002_add_wallets",
		"000003_add_usage_ledgers",
	}, migrations)
}

func TestListMigrationsEmptyDirectory(t *testing.T) {
	migrations, err := ListMigrations(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrationsNonexistentDirectory(t *testing.T) {
	migrations, err := ListMigrations("/nonexistent/path/to/migrations")
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrationsIgnoresOtherFiles(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		"000001_init.up.sql",
		"000001_init.down.sql",
		"README.md",
		"config.toml",
		".gitkeep",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, f), []byte("test"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "subdir.up.sql"), 0755))

	migrations, err := ListMigrations(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init"}, migrations)
}
