package types

import "time"

type Document struct {
	Name     string
	Language string // go|ts|py|... empty when unknown
	Text     string
}

type GenerationRequest struct {
	Source   string
	Name     string
	Language string
}

type GenerationResult struct {
	ID       string        `json:"id"`
	Diagram  string        `json:"diagram"`
	Attempts int           `json:"attempts"`
	Model    string        `json:"model"`
	Duration time.Duration `json:"durationNs"`
}
