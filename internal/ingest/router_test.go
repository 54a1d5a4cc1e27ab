package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"main.go":          "go",
		"src/extension.ts": "typescript",
		"App.TSX":          "typescript",
		"sample.js":        "javascript",
		"svc.py":           "python",
		"Main.java":        "java",
		"lib.rs":           "rust",
		"README":           "",
		"notes.txt":        "",
	}
	for name, want := range cases {
		assert.Equal(t, want, DetectLanguage(name), name)
	}
}

func TestReadDocument(t *testing.T) {
	p := filepath.Join(t.TempDir(), "service.go")
	require.NoError(t, os.WriteFile(p, []byte("package svc\n\ntype A struct{}\n"), 0o644))

	doc, err := ReadDocument(p)
	require.NoError(t, err)
	assert.Equal(t, "service.go", doc.Name)
	assert.Equal(t, "go", doc.Language)
	assert.Equal(t, "package svc\n\ntype A struct{}\n", doc.Text)
}

func TestReadDocumentMissing(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "nope.go"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFromEmpty(t *testing.T) {
	doc, err := ReadFrom("blank.py", strings.NewReader(" \n\t"))
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.Equal(t, "python", doc.Language)
}
