// Package handlers serves build reports and live build logs.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/narvanalabs/codebuild-runner/internal/api/errors"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// writeError writes err tagged with the request id of r.
func writeError(w http.ResponseWriter, r *http.Request, err *apierrors.APIError) {
	apierrors.Write(w, err.ForRequest(middleware.GetReqID(r.Context())))
}
