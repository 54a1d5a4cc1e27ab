package diagram

import (
	"regexp"
	"strings"
)

var (
	reMermaidFence = regexp.MustCompile("```mermaid\\n?")
	reAnyFence     = regexp.MustCompile("```(\\w+)?\\n?")
)

// StripFences removes markdown code-fence markers anywhere in the model output.
func StripFences(s string) string {
	s = reMermaidFence.ReplaceAllString(s, "")
	s = reAnyFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
