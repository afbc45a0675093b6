package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"orderstate/src/handler"
	"orderstate/src/hub"
	"orderstate/src/security"
	"orderstate/src/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App is the application context built once at startup and handed to the router.
type App struct {
	Config           Config
	DB               *gorm.DB
	Service          *service.Service
	Hub              *hub.Hub
	WebhookTokenHash string
}

func NewApp(config Config, db *gorm.DB, hubConfig hub.Config, securityConfig security.Config) *App {
	return &App{
		Config:           config,
		DB:               db,
		Service:          service.NewService(db),
		Hub:              hub.NewHub(hubConfig),
		WebhookTokenHash: securityConfig.WebhookTokenHash,
	}
}

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	// === Global Middleware ===
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})
	r.Get("/ws", app.Hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/get_active_orders", handler.ActiveOrdersHandler(app.Service))
		r.Get("/get_tp_levels/{symbol}", handler.GetTPLevelsHandler(app.Service))

		// Mutating routes
		r.Group(func(r chi.Router) {
			r.Use(security.RequireWebhookToken(app.WebhookTokenHash))
			r.Post("/place_order", handler.PlaceOrderHandler(app.Service))
			r.Post("/save_tp_levels/{symbol}", handler.SaveTPLevelsHandler(app.Service))
			r.Put("/save_tp_level/{symbol}/{index}", handler.SaveTPLevelHandler(app.Service))
			r.Post("/price_update", app.Hub.PublishHandler())
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.WithFields(map[string]interface{}{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"took":       time.Since(start).String(),
		}).Info("request handled")
	})
}

// Run serves app until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, app *App) error {
	addr := ":" + app.Config.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(app),
		ReadHeaderTimeout: app.Config.ReadTimeout,
	}

	go app.Hub.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.WithError(err).Error("Server crashed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
		return err
	}
	return nil
}
