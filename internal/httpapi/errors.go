package httpapi

import (
	"encoding/json"
	"net/http"

	"gatewayd/pkg/types"
)

// writeJSONError writes the consistent error payload: message, stable
// classification and the request id a success would have carried.
func writeJSONError(w http.ResponseWriter, status int, classification, msg, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error:          msg,
		Classification: classification,
		Code:           status,
		RequestID:      requestID,
	})
}
