package router

import (
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/config"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/enum"
	"github.com/snackattack-pos/api/internal/handler"
	mw "github.com/snackattack-pos/api/internal/middleware"
	"github.com/snackattack-pos/api/internal/observability"
	"github.com/snackattack-pos/api/internal/qrcode"
	"github.com/snackattack-pos/api/internal/service"
	"github.com/unrolled/secure"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config    *config.Config
	Queries   *database.Queries
	Sessions  *auth.SessionManager
	Orders    *service.OrderService
	Inventory *service.InventoryService
	Reports   *service.ReportService
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// New creates a Chi router with all application routes wired up.
// Sessions are resolved for every request; role checks are applied per route group.
func New(d Deps) chi.Router {
	cfg := d.Config
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(secureHeaders(cfg, logger))
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))
	r.Use(d.Metrics.Middleware)
	r.Use(mw.LoadSession(d.Sessions, d.Queries, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	})
	r.With(mw.RequireRole(enum.UserRoleAdmin)).Handle("/metrics", d.Metrics.Handler())

	qr := qrcode.New()
	loc := cfg.Location()

	authHandler := handler.NewAuthHandler(d.Queries, d.Sessions)
	userHandler := handler.NewUserHandler(d.Queries)
	productHandler := handler.NewProductHandler(d.Queries, d.Inventory)
	inventoryHandler := handler.NewInventoryHandler(d.Queries, d.Inventory)
	orderHandler := handler.NewOrderHandler(d.Orders, d.Queries, qr, cfg.PublicURL, loc)
	reportsHandler := handler.NewReportsHandler(d.Reports, loc)
	settingsHandler := handler.NewSettingsHandler(d.Queries, qr, uploadDir(cfg), cfg.UploadMaxBytes)

	adminOnly := mw.RequireRole(enum.UserRoleAdmin)
	adminOrStaff := mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleStaff)
	anyStaff := mw.RequireRole(enum.UserRoleAdmin, enum.UserRoleStaff, enum.UserRoleKitchen)

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeNotFound(w)
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimiter(cfg)).Post("/login", authHandler.Login)
			authHandler.RegisterRoutes(r)
		})

		r.Route("/products", productHandler.RegisterPublicRoutes)

		r.Route("/orders", func(r chi.Router) {
			// POS orders are authorized inside the handler; customer orders are public.
			r.Post("/", orderHandler.Create)
			r.Get("/track/{orderNo}", orderHandler.Track)
			r.Get("/track/{orderNo}/qr.png", orderHandler.TrackQR)
			r.With(anyStaff).Get("/active", orderHandler.Active)
			r.With(anyStaff).Put("/{id}/status", orderHandler.UpdateStatus)
			r.With(adminOrStaff).Get("/{id}/receipt", orderHandler.Receipt)
		})

		r.Route("/settings", func(r chi.Router) {
			settingsHandler.RegisterPublicRoutes(r)
			r.With(adminOnly).Post("/gcash", settingsHandler.UpdateGCash)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireAuth)

			r.With(adminOnly).Route("/users", userHandler.RegisterRoutes)

			r.Route("/products", func(r chi.Router) {
				r.With(adminOrStaff).Get("/", productHandler.List)
				r.With(adminOnly).Post("/", productHandler.Create)
				r.With(adminOnly).Put("/{id}", productHandler.Update)
			})

			r.With(adminOrStaff).Route("/inventory", inventoryHandler.RegisterRoutes)

			r.With(adminOrStaff).Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.History)
				r.Get("/{id}", orderHandler.Detail)
			})
		})

		r.With(adminOnly).Route("/reports", reportsHandler.RegisterRoutes)
	})

	r.Handle("/uploads/*", http.StripPrefix("/uploads/", uploadsHandler(uploadDir(cfg))))
	r.Handle("/*", spaHandler(cfg.StaticDir))

	logger.Info("router initialized", slog.String("static_dir", cfg.StaticDir))
	return r
}

func uploadDir(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "uploads")
}

// secureHeaders sets the browser hardening headers and redirects to HTTPS
// in production.
func secureHeaders(cfg *config.Config, logger *slog.Logger) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !cfg.IsProduction(),
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				logger.Warn("secure headers blocked request", slog.Any("error", err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loginLimiter throttles login attempts per client IP.
func loginLimiter(cfg *config.Config) func(http.Handler) http.Handler {
	return httprate.Limit(cfg.LoginRateLimit, cfg.LoginRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"Too many login attempts, try again later"}`))
		}),
	)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"message":"Not found"}`))
}

// uploadsHandler serves uploaded files only. Directory listings and
// in-progress ".upload-" temp files answer 404.
func uploadsHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" || strings.HasPrefix(path.Base(name), ".") {
			http.NotFound(w, r)
			return
		}
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(name, "/"))))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// spaHandler serves files from dir and falls back to index.html for paths
// that do not name an existing file.
func spaHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name != "/" {
			info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(name, "/"))))
			if err != nil || info.IsDir() {
				http.ServeFile(w, r, filepath.Join(dir, "index.html"))
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}
