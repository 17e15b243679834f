package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldserve-app/fieldserve-backend/api/controllers"
	"github.com/fieldserve-app/fieldserve-backend/api/middleware"
	"github.com/fieldserve-app/fieldserve-backend/internal/dispatch"
	"github.com/fieldserve-app/fieldserve-backend/internal/locations"
	"github.com/fieldserve-app/fieldserve-backend/pkg/config"
	"github.com/fieldserve-app/fieldserve-backend/pkg/db"
	"github.com/fieldserve-app/fieldserve-backend/pkg/directory"
	"github.com/fieldserve-app/fieldserve-backend/pkg/enums"
	"github.com/fieldserve-app/fieldserve-backend/pkg/logger"
	"github.com/fieldserve-app/fieldserve-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	directoryClient *directory.Client,
	dispatchService dispatch.Service,
	locationsService locations.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	dispatcherRoles := []string{string(enums.ActorRoleDispatcher), string(enums.ActorRoleAdmin)}
	technicianRole := []string{string(enums.ActorRoleTechnician)}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/tasks", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, dispatcherRoles...))
				r.Post("/", controllers.TaskCreate(dispatchService, logg))
				r.Get("/", controllers.TaskList(dispatchService, logg))
				r.Post("/{taskId}/assign", controllers.TaskAssign(dispatchService, logg))
				r.Post("/{taskId}/reassign", controllers.TaskReassign(dispatchService, logg))
				r.Post("/{taskId}/unassign", controllers.TaskUnassign(dispatchService, logg))
			})

			r.Get("/{taskId}", controllers.TaskDetail(dispatchService, logg))
			r.Get("/{taskId}/history", controllers.TaskHistory(dispatchService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, technicianRole...))
				r.Patch("/{taskId}/status", controllers.TaskStatusUpdate(dispatchService, logg))
				r.Post("/{taskId}/complete", controllers.TaskComplete(dispatchService, logg))
			})
		})

		r.Route("/technicians", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, technicianRole...))
				r.Get("/me/tasks", controllers.MyTasks(dispatchService, logg))
				r.Post("/me/location", controllers.ReportLocation(locationsService, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, dispatcherRoles...))
				r.Get("/{technicianId}", controllers.TechnicianInfo(directoryClient, logg))
				r.Get("/{technicianId}/location", controllers.TechnicianLocation(locationsService, logg))
			})
		})
	})

	return r
}
