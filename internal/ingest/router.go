package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MalithGihan/codediagram-service/pkg/types"
)

var ErrEmptyDocument = errors.New("ingest: document is empty")

// DetectLanguage maps a file name to the label used on the prompt's code fence.
func DetectLanguage(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".go":
		return "go"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript"
	case ".py":
		return "python"
	case ".java":
		return "java"
	case ".kt", ".kts":
		return "kotlin"
	case ".cs":
		return "csharp"
	case ".rb":
		return "ruby"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp", ".cxx":
		return "cpp"
	case ".php":
		return "php"
	case ".swift":
		return "swift"
	case ".scala":
		return "scala"
	default:
		return ""
	}
}

// ReadDocument loads a source file as-is. No size or encoding checks are made.
func ReadDocument(path string) (types.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return types.Document{Name: path}, err
	}
	return newDocument(filepath.Base(path), string(b))
}

// ReadFrom loads a document from a stream, e.g. stdin or an upload.
func ReadFrom(name string, r io.Reader) (types.Document, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return types.Document{Name: name}, fmt.Errorf("read %s: %w", name, err)
	}
	return newDocument(name, string(b))
}

func newDocument(name, text string) (types.Document, error) {
	doc := types.Document{Name: name, Language: DetectLanguage(name), Text: text}
	if strings.TrimSpace(text) == "" {
		return doc, ErrEmptyDocument
	}
	return doc, nil
}
