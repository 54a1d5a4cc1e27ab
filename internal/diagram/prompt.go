package diagram

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/MalithGihan/codediagram-service/pkg/types"
)

//go:embed prompts/system.txt prompts/user.tmpl
var promptFS embed.FS

var (
	systemPrompt string
	userTemplate *template.Template
)

func init() {
	b, err := promptFS.ReadFile("prompts/system.txt")
	if err != nil {
		panic(err)
	}
	systemPrompt = strings.TrimSpace(string(b))
	userTemplate = template.Must(template.ParseFS(promptFS, "prompts/user.tmpl"))
}

// SystemPrompt is the fixed instruction sent as the system message.
func SystemPrompt() string { return systemPrompt }

// UserPrompt wraps the source in a fenced block behind the analysis instructions.
// The source is passed through untouched.
func UserPrompt(req types.GenerationRequest) (string, error) {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render user prompt: %w", err)
	}
	return buf.String(), nil
}
