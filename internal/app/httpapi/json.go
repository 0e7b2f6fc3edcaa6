package httpapi

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/waitroomxyz/api/internal/errors"
)

// maxBodyBytes caps request bodies; waitlist payloads are small.
const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Validation("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	svcErr := apperrors.From(err)
	writeJSON(w, svcErr.HTTPStatus, map[string]interface{}{"error": svcErr})
}
