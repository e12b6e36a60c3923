package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func seedDoc(codes ...string) string {
	doc := "coupons:\n"
	for _, c := range codes {
		doc += "  - code: " + c + "\n" +
			"    discountType: FLAT\n" +
			"    discountValue: 5\n" +
			"    startDate: \"2025-01-01T00:00\"\n" +
			"    endDate: \"2025-12-31T00:00\"\n"
	}
	return doc
}

func TestRun_Clean(t *testing.T) {
	dir := t.TempDir()
	a := writeSeed(t, dir, "a.yaml", seedDoc("A1", "A2"))
	b := writeSeed(t, dir, "b.yaml", seedDoc("B1"))

	rep, err := run(context.Background(), []string{a, b}, time.UTC)
	require.NoError(t, err)
	assert.True(t, rep.ok())
}

func TestRun_Problems(t *testing.T) {
	dir := t.TempDir()
	a := writeSeed(t, dir, "a.yaml", seedDoc("SHARED", "A1", "A1"))
	b := writeSeed(t, dir, "b.yaml", seedDoc("SHARED", "B1"))
	c := writeSeed(t, dir, "c.yaml", `
coupons:
  - code: BAD
    discountType: BOGO
    discountValue: 5
    startDate: "2025-01-01T00:00"
    endDate: "2025-12-31T00:00"
`)

	rep, err := run(context.Background(), []string{a, b, c}, time.UTC)
	require.NoError(t, err)
	assert.False(t, rep.ok())
	assert.Equal(t, 1, rep.invalid)
	assert.Equal(t, 1, rep.duplicates)
	assert.Equal(t, map[string][]string{"SHARED": {a, b}}, rep.crossFileCodes)
}

func TestRun_LoadError(t *testing.T) {
	_, err := run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.yaml")}, time.UTC)
	require.Error(t, err)
}

func TestFindCrossFileCodes_FalsePositive(t *testing.T) {
	dir := t.TempDir()
	a := writeSeed(t, dir, "a.yaml", seedDoc("ONLY_A", "SHARED"))
	b := writeSeed(t, dir, "b.yaml", seedDoc("ONLY_B", "SHARED", "SHARED"))
	c := writeSeed(t, dir, "c.yaml", seedDoc("ONLY_C"))

	checks, err := checkFiles(context.Background(), []string{a, b, c}, time.UTC)
	require.NoError(t, err)
	require.Len(t, checks, 3)
	assert.Equal(t, 1, checks[1].duplicates)

	// Make c's filter claim a code it does not define.
	checks[2].filter.AddString("ONLY_A")
	require.True(t, checks[2].filter.TestString("ONLY_A"))

	shared, err := findCrossFileCodes(context.Background(), checks)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"SHARED": {a, b}}, shared)
}

func TestFindCrossFileCodes_FileRemoved(t *testing.T) {
	dir := t.TempDir()
	a := writeSeed(t, dir, "a.yaml", seedDoc("X"))
	b := writeSeed(t, dir, "b.yaml", seedDoc("X"))

	checks, err := checkFiles(context.Background(), []string{a, b}, time.UTC)
	require.NoError(t, err)
	require.NoError(t, os.Remove(b))

	_, err = findCrossFileCodes(context.Background(), checks)
	require.Error(t, err)
}
