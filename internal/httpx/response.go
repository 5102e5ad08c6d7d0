package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError maps err through the taxonomy and writes it as a JSON body
// {"error": key, "message": ...}.
func JSONError(w http.ResponseWriter, err error) {
	httpErr := From(err)
	JSON(w, httpErr.Code, httpErr)
}

// Decode reads a JSON request body into v. Unknown fields are rejected
// so client typos surface as 400s instead of silently dropped fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrBadRequest.WithMessage("request body is required")
		}
		return ErrBadRequest.WithMessage("invalid request body: %s", err.Error())
	}
	return nil
}
