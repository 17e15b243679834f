package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fieldserve-app/fieldserve-backend/api/middleware"
	"github.com/fieldserve-app/fieldserve-backend/api/responses"
	"github.com/fieldserve-app/fieldserve-backend/api/validators"
	"github.com/fieldserve-app/fieldserve-backend/internal/dispatch"
	"github.com/fieldserve-app/fieldserve-backend/internal/locations"
	"github.com/fieldserve-app/fieldserve-backend/pkg/directory"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
	"github.com/fieldserve-app/fieldserve-backend/pkg/logger"
)

// MyTasks returns the calling technician's work queue, ordered by priority.
func MyTasks(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		technicianID := middleware.UserIDFromContext(r.Context())
		if technicianID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		input := dispatch.TechnicianTasksInput{TechnicianID: technicianID}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			// Unrecognized status values fall back to the full queue.
			if status, err := enums.ParseTaskStatus(raw); err == nil {
				input.Status = &status
			}
		}

		tasks, err := svc.TechnicianTasks(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"tasks": tasks})
	}
}

// ReportLocation records the calling technician's current position.
func ReportLocation(svc locations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		technicianID := middleware.UserIDFromContext(r.Context())
		if technicianID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload reportLocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		position, err := svc.Report(r.Context(), locations.ReportInput{
			TechnicianID: technicianID,
			Latitude:     payload.Latitude,
			Longitude:    payload.Longitude,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, position)
	}
}

// TechnicianLocation returns a technician's last reported position.
func TechnicianLocation(svc locations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		technicianID := strings.TrimSpace(chi.URLParam(r, "technicianId"))
		if technicianID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "technician id is required"))
			return
		}

		position, err := svc.LastKnown(r.Context(), technicianID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, position)
	}
}

// TechnicianInfo proxies a directory lookup for one technician.
func TechnicianInfo(client *directory.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		technicianID := strings.TrimSpace(chi.URLParam(r, "technicianId"))
		if technicianID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "technician id is required"))
			return
		}

		// lookups that miss or fail come back nil; the client serves null data
		responses.WriteSuccess(w, client.GetInfo(r.Context(), technicianID))
	}
}

type reportLocationRequest struct {
	// required is deliberately omitted: the equator and prime meridian are
	// legitimate zero values.
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}
