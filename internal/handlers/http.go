// internal/handlers/http.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jason-s-yu/spyfall/internal/lobby"
	"github.com/jason-s-yu/spyfall/internal/locations"
)

type themeInfo struct {
	ID        string `json:"id"`
	Locations int    `json:"locations"`
}

// ThemesHandler lists the themes a host may pick, with location counts.
func ThemesHandler(ds *locations.Dataset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		out := []themeInfo{}
		for _, th := range ds.Themes() {
			out = append(out, themeInfo{ID: th, Locations: ds.Count(th)})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"themes": out})
	}
}

// HealthHandler reports liveness and the number of open rooms.
func HealthHandler(reg *lobby.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"rooms":  reg.Len(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
