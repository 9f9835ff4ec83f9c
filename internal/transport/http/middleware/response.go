package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError writes the standard {"status","res":{"msg"}} envelope.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": status,
		"res":    map[string]string{"msg": msg},
	})
}
