package server

import (
	"embed"
	"net/http"
)

//go:embed static/admin.html
var adminPageFS embed.FS

var htmlCT = []string{"text/html; charset=utf-8"}

// handleAdminPage serves the embedded read-only admin dashboard.
func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	data, err := adminPageFS.ReadFile("static/admin.html")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse("admin page unavailable"))
		return
	}
	w.Header()["Content-Type"] = htmlCT
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
