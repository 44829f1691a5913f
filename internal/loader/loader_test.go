package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/newsrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_OneDocumentPerFileInLexicalOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "msft_q1.txt", "Microsoft cloud revenue grew.")
	writeFile(t, dir, "apple_q2.txt", "Apple services revenue hit a record.")
	writeFile(t, dir, "apple_q1.txt", "Apple iPhone sales slowed in China.")

	docs, err := New().Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "apple_q1.txt", docs[0].Source)
	assert.Equal(t, "apple_q2.txt", docs[1].Source)
	assert.Equal(t, "msft_q1.txt", docs[2].Source)
	assert.Equal(t, "Apple iPhone sales slowed in China.", docs[0].Text)
	assert.Equal(t, "apple_q1.txt", docs[0].Metadata[domain.MetaFileName])
	assert.Equal(t, "35", docs[0].Metadata[domain.MetaFileSize])
}

func TestLoad_Recursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "root file")
	writeFile(t, dir, "2023/a.txt", "nested file")

	docs, err := New().Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "2023/a.txt", docs[0].Source)
	assert.Equal(t, "b.txt", docs[1].Source)
}

func TestLoad_OrdersByRelativePathAcrossDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a/b.txt", "nested")
	writeFile(t, dir, "a.txt", "sibling")
	writeFile(t, dir, "a-z.txt", "dash")

	docs, err := New().Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	sources := []string{docs[0].Source, docs[1].Source, docs[2].Source}
	assert.Equal(t, []string{"a-z.txt", "a.txt", "a/b.txt"}, sources)
}

func TestLoad_SkipsHiddenAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "article.txt", "kept")
	writeFile(t, dir, ".DS_Store", "hidden")
	writeFile(t, dir, ".cache/old.txt", "hidden dir")
	writeFile(t, dir, "chart.png", "binary")

	docs, err := New().Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "article.txt", docs[0].Source)
}

func TestLoad_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "text")
	writeFile(t, dir, "b.json", "{}")

	docs, err := New("json").Load(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.json", docs[0].Source)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()

	docs, err := New().Load(dir)
	assert.Nil(t, docs)
	assert.True(t, errors.Is(err, domain.ErrNoDocumentsFound))
}

func TestLoad_OnlyUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "image.jpg", "jpg")

	_, err := New().Load(dir)
	assert.True(t, errors.Is(err, domain.ErrNoDocumentsFound))
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := New().Load(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, domain.ErrDirectoryNotFound))
}

func TestLoad_PathIsFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "content")

	_, err := New().Load(filepath.Join(dir, "file.txt"))
	assert.True(t, errors.Is(err, domain.ErrDirectoryNotFound))
}
