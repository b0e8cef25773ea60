package handlers

import (
	"net/http"
)

// Health reports liveness only; it does not touch the stores.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "distribution",
	})
}
