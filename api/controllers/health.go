package controllers

import (
	"net/http"

	"github.com/emotrace/emotrace-backend/api/responses"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/db"
	pkgerrors "github.com/emotrace/emotrace-backend/pkg/errors"
	"github.com/emotrace/emotrace-backend/pkg/logger"
	"github.com/emotrace/emotrace-backend/pkg/redis"
	"github.com/emotrace/emotrace-backend/pkg/storage/cloudinary"
)

const envHeader = "X-Emotrace-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the dependencies the API cannot serve without.
// Storage is optional at readiness time; a nil pinger is skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger, storageP cloudinary.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable").
						WithDetails(map[string]any{"dependency": "database"}))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").
						WithDetails(map[string]any{"dependency": "redis"}))
				return
			}
		}
		if storageP != nil {
			if err := storageP.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "object storage unavailable").
						WithDetails(map[string]any{"dependency": "storage"}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
