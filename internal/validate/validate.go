package validate

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const completionSchemaURL = "chat-completion.schema.json"

//go:embed chat-completion.schema.json
var completionSchema string

var (
	once    sync.Once
	schema  *jsonschema.Schema
	loadErr error
)

// Accepted diagram headers. Anything else is rejected.
var DiagramPrefixes = []string{"flowchart TD", "graph TD"}

var (
	ErrEmptyDiagram   = errors.New("no diagram generated from the API")
	ErrDiagramPrefix  = errors.New("invalid diagram syntax: must start with flowchart TD or graph TD")
	ErrResponseSchema = errors.New("completion response does not match schema")
)

func load() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(completionSchemaURL, strings.NewReader(completionSchema)); err != nil {
		loadErr = err
		return
	}
	s, err := c.Compile(completionSchemaURL)
	if err != nil {
		loadErr = err
		return
	}
	schema = s
}

// CompletionBody checks a raw chat-completion body against the embedded schema.
func CompletionBody(body []byte) error {
	once.Do(load)
	if loadErr != nil {
		return loadErr
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseSchema, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseSchema, err)
	}
	return nil
}

// Diagram rejects empty text and text without an accepted header.
func Diagram(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyDiagram
	}
	for _, p := range DiagramPrefixes {
		if strings.HasPrefix(text, p) {
			return nil
		}
	}
	return ErrDiagramPrefix
}
