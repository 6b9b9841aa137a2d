package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emotrace/emotrace-backend/api/controllers"
	"github.com/emotrace/emotrace-backend/api/middleware"
	"github.com/emotrace/emotrace-backend/internal/auth"
	"github.com/emotrace/emotrace-backend/internal/collections"
	"github.com/emotrace/emotrace-backend/internal/media"
	"github.com/emotrace/emotrace-backend/internal/records"
	"github.com/emotrace/emotrace-backend/internal/upload"
	"github.com/emotrace/emotrace-backend/pkg/auth/session"
	"github.com/emotrace/emotrace-backend/pkg/config"
	"github.com/emotrace/emotrace-backend/pkg/db"
	"github.com/emotrace/emotrace-backend/pkg/logger"
	"github.com/emotrace/emotrace-backend/pkg/redis"
	"github.com/emotrace/emotrace-backend/pkg/storage/cloudinary"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          redis.Pinger
	Storage        cloudinary.Pinger
	SessionChecker session.AccessSessionChecker
	AuthService    auth.Service
	Register       auth.RegisterService
	Upload         upload.Service
	Media          media.Service
	Records        records.Service
	Collections    collections.Service
	AIProbe        controllers.AIHealthChecker
	Metrics        prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis, p.Storage))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/media/ai-status", controllers.MediaAIAvailability(cfg.AI, p.AIProbe, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.AuthRegister(p.Register, p.AuthService, logg))
		r.Post("/login", controllers.AuthLogin(p.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(p.AuthService, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.SessionChecker, logg))

		r.Route("/media", func(r chi.Router) {
			r.Get("/", controllers.MediaList(p.Media, logg))
			r.Post("/upload", controllers.MediaUpload(p.Upload, cfg.Upload, logg))
			r.Post("/upload-multiple", controllers.MediaUploadMany(p.Upload, cfg.Upload, logg))
			r.Post("/upload-from-url", controllers.MediaUploadFromURL(p.Upload, logg))
			r.Get("/{mediaId}", controllers.MediaGet(p.Media, logg))
			r.Delete("/{mediaId}", controllers.MediaDelete(p.Media, logg))
			r.Patch("/{mediaId}/collection", controllers.MediaAssignCollection(p.Media, logg))
			r.Post("/{mediaId}/process-ai", controllers.MediaReprocessAI(p.Media, logg))
			r.Get("/{mediaId}/ai-status", controllers.MediaAIStatus(p.Media, logg))
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", controllers.RecordList(p.Records, logg))
			r.Get("/{recordId}", controllers.RecordGet(p.Records, logg))
			r.Delete("/{recordId}", controllers.RecordDelete(p.Records, logg))
			r.Patch("/{recordId}/collection", controllers.RecordAssignCollection(p.Collections, logg))
		})

		r.Route("/collections", func(r chi.Router) {
			r.Post("/", controllers.CollectionCreate(p.Collections, logg))
			r.Get("/", controllers.CollectionList(p.Collections, logg))
			r.Get("/{collectionId}", controllers.CollectionGet(p.Collections, logg))
			r.Put("/{collectionId}", controllers.CollectionRename(p.Collections, logg))
			r.Delete("/{collectionId}", controllers.CollectionDelete(p.Collections, logg))
			r.Get("/{collectionId}/records", controllers.CollectionListRecords(p.Collections, p.Records, logg))
			r.Get("/{collectionId}/media", controllers.CollectionListMedia(p.Collections, p.Media, logg))
			r.Post("/{collectionId}/records/{recordId}", controllers.CollectionAddRecord(p.Collections, logg))
			r.Delete("/{collectionId}/records/{recordId}", controllers.CollectionRemoveRecord(p.Collections, logg))
		})
	})

	return r
}
