package controllers

import (
	"context"
	"net/http"

	"github.com/fieldserve-app/fieldserve-backend/api/responses"
	"github.com/fieldserve-app/fieldserve-backend/pkg/config"
	"github.com/fieldserve-app/fieldserve-backend/pkg/db"
	pkgerrors "github.com/fieldserve-app/fieldserve-backend/pkg/errors"
	"github.com/fieldserve-app/fieldserve-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FieldServe-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-FieldServe-Env", cfg.App.Env)

		checks := map[string]pinger{
			"database": dbP,
			"redis":    cache,
		}
		for name, p := range checks {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
