package handlers

import "net/http"

// RegisterHealth mounts the liveness endpoint on mux.
func RegisterHealth(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{"status": "ok"})
	})
}
