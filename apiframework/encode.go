package apiframework

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var version = "dev"

// GetVersion reports the build version injected at link time.
func GetVersion() string {
	return version
}

// AboutServer is the payload of the version endpoint.
type AboutServer struct {
	Version        string `json:"version"`
	NodeInstanceID string `json:"nodeInstanceID"`
}

// Encode writes v as JSON with the given status code.
func Encode[T any](w http.ResponseWriter, _ *http.Request, status int, v T) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// Decode reads the request body as JSON into T. An empty body is reported
// as ErrEmptyRequestBody so handlers can map it to a 400.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	if r.Body == nil {
		return v, ErrEmptyRequestBody
	}
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return v, ErrEmptyRequestBody
		}
		return v, fmt.Errorf("%w: decode json: %w", ErrBadRequest, err)
	}
	return v, nil
}

// GetPathParam reads a path wildcard value. doc describes the parameter for
// the API reference generator.
func GetPathParam(r *http.Request, name string, doc string) string {
	_ = doc
	return r.PathValue(name)
}

// GetQueryParam reads a query parameter, falling back to defaultValue when
// absent. doc describes the parameter for the API reference generator.
func GetQueryParam(r *http.Request, name string, defaultValue string, doc string) string {
	_ = doc
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}
	return value
}
