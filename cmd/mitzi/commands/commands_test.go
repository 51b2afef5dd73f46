package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Billy-Davies-2/mitzi/internal/models"
)

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.Execute()
	return out.String(), err
}

func sheetOf(t *testing.T, out string) models.Document {
	t.Helper()
	var doc models.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	return doc
}

func cleanEnv(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "STORE_KEY", "STORE_DIR", "STATIC_DIR"} {
		t.Setenv(key, "")
	}
}

func TestShowSeedsFileStore(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	out, err := run(t, dir, "show")
	require.NoError(t, err)
	assert.Len(t, sheetOf(t, out).Tiers, 3)

	_, err = os.Stat(filepath.Join(dir, "savedCommissionData.json"))
	assert.NoError(t, err, "show should persist the seeded sheet")
}

func TestEditsPersistAcrossRuns(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	_, err := run(t, dir, "tier", "add", "--name", "Rush", "--price", "80", "--info", "48h")
	require.NoError(t, err)
	_, err = run(t, dir, "tier", "remove", "2")
	require.NoError(t, err)
	_, err = run(t, dir, "rule", "add", "No refunds")
	require.NoError(t, err)
	_, err = run(t, dir, "set", "currency", "euro")
	require.NoError(t, err)
	_, err = run(t, dir, "set", "artistName", `"Mitzi"`)
	require.NoError(t, err)

	out, err := run(t, dir, "show")
	require.NoError(t, err)
	doc := sheetOf(t, out)

	var names []string
	for _, tier := range doc.Tiers {
		names = append(names, tier.Name)
	}
	assert.Equal(t, []string{"Basic", "Premium", "Rush"}, names)
	assert.Equal(t, int64(4), doc.Tiers[2].ID)
	assert.Contains(t, doc.Rules, "No refunds")
	assert.Equal(t, models.CurrencyEuro, doc.Currency)
	assert.Equal(t, "Mitzi", doc.ArtistName)

	out, err = run(t, dir, "reset")
	require.NoError(t, err)
	assert.Len(t, sheetOf(t, out).Tiers, 3)
}

func TestResetPurgeDropsBackup(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "savedCommissionData.json"), []byte("{broken"), 0o600))

	_, err := run(t, dir, "show")
	require.NoError(t, err)
	backup := filepath.Join(dir, "savedCommissionData.corrupt.json")
	_, err = os.Stat(backup)
	require.NoError(t, err, "unreadable sheet should be backed up")

	_, err = run(t, dir, "reset", "--purge")
	require.NoError(t, err)
	_, err = os.Stat(backup)
	assert.True(t, os.IsNotExist(err), "purge should delete the backup")
}

func TestCommandErrors(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	_, err := run(t, dir, "tier", "remove", "abc")
	assert.Error(t, err)

	_, err = run(t, dir, "set", "currency", "yen")
	assert.Error(t, err)

	_, err = run(t, dir, "rule", "add", "   ")
	assert.Error(t, err)

	_, err = run(t, dir, "export", "pdf")
	assert.Error(t, err)
}

func TestExportWritesFiles(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	png := filepath.Join(dir, "sheet.png")
	_, err := run(t, dir, "export", "png", "-o", png)
	require.NoError(t, err)
	data, err := os.ReadFile(png)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))

	out, err := run(t, dir, "export", "xlsx", "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, "PK", out[:2], "xlsx is a zip archive")
}
