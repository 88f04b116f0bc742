// Package httpapi exposes the Central Coordinator's read-mostly HTTP
// surface: a JSON dashboard API, inbound weather hooks, a websocket live
// feed, and a small admin surface (login + stop/resume) that mirrors what
// the operator console can already do over stdin. Routing follows the
// teacher's net/http 1.22 ServeMux pattern style — one handler-factory
// function per route, deps threaded through a single struct.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/evcharge/central/events"
	"github.com/evcharge/central/session"
)

// Deps holds every collaborator the HTTP surface needs.
type Deps struct {
	Manager   *session.Manager
	Bus       *events.Bus
	JWTSecret []byte
	AdminUser string
	AdminHash string // bcrypt hash of the admin password; empty disables admin login
}

// New builds the application HTTP handler.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()
	requireAdmin := RequireAdmin(d.JWTSecret)

	// ---- dashboard read API ----
	mux.HandleFunc("GET /api/cps", listCPs(d))
	mux.HandleFunc("GET /api/drivers", listDrivers(d))
	mux.HandleFunc("GET /api/history", listHistory(d))
	mux.HandleFunc("GET /api/status", getStatus(d))

	// ---- weather inbound hooks ----
	mux.HandleFunc("POST /api/weather/alert", weatherAlert(d))
	mux.HandleFunc("POST /api/weather/clear", weatherClear(d))

	// ---- live feed ----
	mux.HandleFunc("GET /api/ws/dashboard", dashboardWS(d))

	// ---- admin ----
	mux.HandleFunc("POST /api/admin/login", adminLogin(d))
	mux.Handle("POST /api/admin/cps/{id}/stop", requireAdmin(http.HandlerFunc(adminStopCP(d))))
	mux.Handle("POST /api/admin/cps/{id}/resume", requireAdmin(http.HandlerFunc(adminResumeCP(d))))

	mux.HandleFunc("GET /api/health", health(d))

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func health(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
