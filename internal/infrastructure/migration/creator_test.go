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
		{"add bursary table", "add_bursary_table"},
		{"Add-Bursary-Table", "add_bursary_table"},
		{"ADD_BURSARY_TABLE", "add_bursary_table"},
		{"add__bursary__table", "add_bursary_table"},
		{"Term 3 Fees", "term_3_fees"},
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

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644))
	}
}

func TestCreateMigration(t *testing.T) {
	t.Run("first migration", func(t *testing.T) {
		dir := t.TempDir()

		mf, err := CreateMigration(dir, "add bursaries", "Bursary awards per student")
		require.NoError(t, err)
		assert.Equal(t, "000001", mf.Version)
		assert.Equal(t, "000001_add_bursaries.up.sql", filepath.Base(mf.UpPath))
		assert.Equal(t, "000001_add_bursaries.down.sql", filepath.Base(mf.DownPath))

		up, err := os.ReadFile(mf.UpPath)
		require.NoError(t, err)
		assert.Contains(t, string(up), "Bursary awards per student")
		assert.Contains(t, string(up), "school_id")

		down, err := os.ReadFile(mf.DownPath)
		require.NoError(t, err)
		assert.Contains(t, string(down), "Rollback")
	})

	t.Run("continues the sequence", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000001_ledger_schema.up.sql", "000001_ledger_schema.down.sql",
			"000007_billing.up.sql", "000007_billing.down.sql",
		)

		mf, err := CreateMigration(dir, "add receipts", "")
		require.NoError(t, err)
		assert.Equal(t, "000008", mf.Version)
	})

	t.Run("creates the directory", func(t *testing.T) {
		nested := filepath.Join(t.TempDir(), "nested", "migrations")

		_, err := CreateMigration(nested, "init", "")
		require.NoError(t, err)

		info, err := os.Stat(nested)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("rejects an empty name", func(t *testing.T) {
		_, err := CreateMigration(t.TempDir(), "!!!", "")
		assert.Error(t, err)
	})
}

func TestListMigrations(t *testing.T) {
	t.Run("sorted base names", func(t *testing.T) {
		dir := t.TempDir()
		writeFiles(t, dir,
			"000003_approvals.up.sql", "000003_approvals.down.sql",
			"000001_init.up.sql", "000001_init.down.sql",
			"000002_billing.up.sql", "000002_billing.down.sql",
			"README.md", ".gitkeep",
		)
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir.up.sql"), 0o755))

		names, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"000001_init", "000002_billing", "000003_approvals"}, names)
	})

	t.Run("missing directory", func(t *testing.T) {
		names, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestListEmbedded(t *testing.T) {
	names, err := ListEmbedded()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.True(t, strings.HasPrefix(names[0], "000001_"))
	for _, name := range names {
		assert.Len(t, strings.SplitN(name, "_", 2)[0], versionWidth)
	}
}
