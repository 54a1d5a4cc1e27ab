package diagram

import (
	"errors"
	"fmt"

	"github.com/MalithGihan/codediagram-service/internal/credential"
)

// Fallback is the placeholder shown in the panel when generation fails.
func Fallback(err error) string {
	return fmt.Sprintf(`flowchart TD
    A[Error] -->|Failed to generate diagram| B[%s]
    B --> C[Please check your configuration and try again]
    style A fill:#f44747,stroke:#333`, reason(err))
}

// reason returns a label without characters that Mermaid treats as syntax.
func reason(err error) string {
	switch {
	case err == nil:
		return "Unknown error"
	case errors.Is(err, credential.ErrNotConfigured):
		return "API key is not configured"
	case errors.Is(err, ErrConfiguration):
		return "API key could not be loaded"
	case errors.Is(err, ErrResponseShape):
		return "Unexpected response from the model API"
	case errors.Is(err, ErrValidation):
		return "Model returned an invalid diagram"
	case errors.Is(err, ErrTransport):
		return "Model API request failed"
	default:
		return "Unknown error"
	}
}
