package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/league-ladder-backend/internal/service"
	"github.com/DoyleJ11/league-ladder-backend/internal/ws"
)

func SetupRoutes(svc *service.Service, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	a := &api{svc: svc, log: log.Named("http")}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.log))

	// Public routes
	r.Get("/healthz", a.Healthz)
	r.Get("/ws", ws.Handler(svc, log))

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", a.ListSessions)
		r.Post("/", a.CreateSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.GetSession)
			r.Delete("/", a.DeleteSession)
			r.Post("/score", a.Score)
			r.Post("/reset", a.Reset)
			r.Put("/names", a.Rename)
			r.Put("/sounds", a.SetSounds)
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}
