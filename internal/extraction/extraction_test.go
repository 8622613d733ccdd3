package extraction

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func isJSON(path string) bool { return strings.HasSuffix(path, ".json") }

func TestExtractArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "upload.zip")
	writeZip(t, archive, map[string]string{"model/doc.json": "{}", "readme.txt": "hi"})

	files, dir, err := ExtractArchive(context.Background(), archive)
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	assert.Len(t, files, 2)
	data, err := os.ReadFile(filepath.Join(dir, "model", "doc.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestFindDocument(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "upload.zip")
	writeZip(t, archive, map[string]string{
		"doc.json":            `{"objects":[]}`,
		"__MACOSX/._doc.json": "junk",
		".DS_Store":           "junk",
		"notes.txt":           "hi",
	})

	doc, cleanup, err := FindDocument(context.Background(), archive, isJSON)
	require.NoError(t, err)
	assert.Equal(t, "doc.json", filepath.Base(doc))
	cleanup()
	_, err = os.Stat(doc)
	assert.True(t, os.IsNotExist(err))
}

func TestFindDocumentNested(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "inner.zip")
	writeZip(t, inner, map[string]string{"doc.json": "{}"})
	innerBytes, err := os.ReadFile(inner)
	require.NoError(t, err)

	outer := filepath.Join(dir, "outer.zip")
	writeZip(t, outer, map[string]string{"inner.zip": string(innerBytes)})

	doc, cleanup, err := FindDocument(context.Background(), outer, isJSON)
	defer cleanup()
	require.NoError(t, err)
	assert.Equal(t, "doc.json", filepath.Base(doc))
}

func TestFindDocumentErrors(t *testing.T) {
	dir := t.TempDir()

	none := filepath.Join(dir, "none.zip")
	writeZip(t, none, map[string]string{"readme.txt": "hi"})
	_, cleanup, err := FindDocument(context.Background(), none, isJSON)
	cleanup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "readme.txt")

	many := filepath.Join(dir, "many.zip")
	writeZip(t, many, map[string]string{"a.json": "{}", "b.json": "{}"})
	_, cleanup, err = FindDocument(context.Background(), many, isJSON)
	cleanup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestShouldIgnore(t *testing.T) {
	for _, name := range []string{"._doc.json", ".DS_Store", "Thumbs.db", ""} {
		assert.True(t, ShouldIgnore(name), name)
	}
	assert.False(t, ShouldIgnore("doc.json"))
	assert.True(t, IsArchive("x.ZIP"))
	assert.False(t, IsArchive("x.json"))
}
