package server

import (
	_ "embed"
	"net/http"
)

//go:embed panel.html
var panelHTML []byte

func (s *Server) handlePanel(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(panelHTML)
}
