package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rpggio/stockcount/internal/domain/count"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stockcount.yaml")
	cfg := `
store:
  driver: json
  dir: ` + filepath.Join(dir, "data") + `
audit:
  dir: ` + filepath.Join(dir, "audit") + `
facility:
  id: kitchen
  name: Central kitchen
  locations:
    - id: DRY-1
    - id: COOLER
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCLICountFlow(t *testing.T) {
	cfg := writeConfig(t)

	code, _, stderr := runCLI(t, "-c", cfg, "-u", "ana", "start", "-start", "2020-03-02", "-end", "2020-03-03", "-people", "2")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = runCLI(t, "-c", cfg, "-u", "ana", "add", "-location", "COOLER", "-code", "42", "-name", "Milk", "-qty", "12", "-unit", "l", "-price", "1.10")
	require.Equal(t, 0, code, stderr)

	code, out, _ := runCLI(t, "-c", cfg, "items")
	require.Equal(t, 0, code)
	var items struct {
		Items []count.CountedItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items.Items, 1)
	require.Equal(t, "13.2", items.Items[0].TotalValue.String())
	require.Equal(t, "ana", items.Items[0].AddedBy)

	code, out, _ = runCLI(t, "-c", cfg, "logs", "-user-id", "ana")
	require.Equal(t, 0, code)
	require.Contains(t, out, "ITEM_ADD")
}

func TestCLIValidationRejected(t *testing.T) {
	cfg := writeConfig(t)
	code, out, _ := runCLI(t, "-c", cfg, "start", "-start", "2020-03-05", "-end", "2020-03-01", "-people", "2")
	require.Equal(t, 3, code)
	require.Contains(t, out, "INVALID_DATE_RANGE")
}

func TestCLIErrors(t *testing.T) {
	cfg := writeConfig(t)

	code, _, stderr := runCLI(t, "-c", cfg, "delete", "-index", "0")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "NO_COUNT_IN_PROGRESS")

	code, _, stderr = runCLI(t, "-c", cfg, "bogus")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "unknown command")
}

func TestCLIExport(t *testing.T) {
	cfg := writeConfig(t)
	out := filepath.Join(t.TempDir(), "count.xlsx")

	code, stdout, stderr := runCLI(t, "-c", cfg, "export", "-o", out)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
