package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"tablefront-pos-service/internal/cache"
	"tablefront-pos-service/internal/config"
	"tablefront-pos-service/internal/http/handlers"
	"tablefront-pos-service/internal/mailer"
	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/internal/queue"
	"tablefront-pos-service/internal/storage"
	"tablefront-pos-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Deps struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client
	Cache  *cache.Cache
	Store  *storage.ObjectStore
	Mail   *mailer.Mailer
	WS     *ws.Server
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(deps.Logger))

	cfg := deps.Config
	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{
		DB:     deps.DB,
		Logger: deps.Logger,
		Config: cfg,
		Queue:  deps.Queue,
		Cache:  deps.Cache,
		Store:  deps.Store,
		Mail:   deps.Mail,
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/password-reset/request", h.PasswordResetRequest)
		r.Post("/password-reset/confirm", h.PasswordResetConfirm)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(deps.DB, cfg.JWTSecret))
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})
	})

	r.Route("/api/public/{restaurantCode}", func(r chi.Router) {
		r.Get("/site", h.PublicSite)
		r.Get("/menu", h.PublicMenu)
		r.Post("/checkout", h.PublicCheckout)
		r.Get("/orders/{orderNumber}", h.PublicOrderTrack)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.TenantAuth(deps.DB, cfg.JWTSecret))

		r.Get("/menu-categories", h.MenuCategoriesList)
		r.Post("/menu-categories", h.MenuCategoriesCreate)
		r.Put("/menu-categories/{id}", h.MenuCategoriesUpdate)
		r.Delete("/menu-categories/{id}", h.MenuCategoriesDelete)

		r.Get("/menu", h.MenuItemsList)
		r.Post("/menu", h.MenuItemsCreate)
		r.Put("/menu/{id}", h.MenuItemsUpdate)
		r.Patch("/menu/{id}/availability", h.MenuItemsToggleAvailable)
		r.Delete("/menu/{id}", h.MenuItemsDelete)

		r.Get("/areas", h.AreasList)
		r.Post("/areas", h.AreasCreate)
		r.Put("/areas/{id}", h.AreasUpdate)
		r.Delete("/areas/{id}", h.AreasDelete)

		r.Get("/tables", h.TablesList)
		r.Post("/tables", h.TablesCreate)
		r.Put("/tables/{id}", h.TablesUpdate)
		r.Delete("/tables/{id}", h.TablesDelete)
		r.Get("/tables/{id}/qr", h.TableQRCode)

		r.Get("/orders", h.OrdersList)
		r.Get("/orders/serve", h.OrdersServeList)
		r.Get("/orders/{id}", h.OrderDetail)
		r.Patch("/orders/{id}/status", h.OrderUpdateStatus)

		r.Get("/kitchen/tickets", h.KitchenTicketsList)
		r.Patch("/kitchen/tickets/{id}/status", h.KitchenTicketUpdateStatus)
		r.Post("/kitchen/tickets/{id}/complete", h.KitchenTicketComplete)

		r.Post("/payments", h.PaymentCreate)
		r.Get("/payments", h.PaymentsList)
		r.Get("/payments/{id}/receipt", h.PaymentReceiptPDF)

		r.Get("/staff", h.StaffList)
		r.Post("/staff", h.StaffCreate)
		r.Put("/staff/{id}", h.StaffUpdate)
		r.Delete("/staff/{id}", h.StaffDelete)

		r.Get("/website/settings", h.WebsiteSettingsGet)
		r.Put("/website/settings", h.WebsiteSettingsPut)
		r.Get("/website/banners", h.WebsiteBannersList)
		r.Post("/website/banners", h.WebsiteBannersCreate)
		r.Put("/website/banners/{id}", h.WebsiteBannersUpdate)
		r.Delete("/website/banners/{id}", h.WebsiteBannersDelete)

		r.Post("/uploads/images", h.ImageUpload)
	})

	r.Route("/api/superadmin", func(r chi.Router) {
		r.Use(middleware.SuperAdminAuth(deps.DB, cfg.JWTSecret))

		r.Get("/restaurants", h.TenantsList)
		r.Post("/restaurants", h.TenantCreate)
		r.Put("/restaurants/{id}", h.TenantUpdate)
		r.Post("/restaurants/{id}/toggle-active", h.TenantToggleActive)
		r.Post("/restaurants/{id}/reset-owner-password", h.TenantResetOwnerPassword)
		r.Get("/reports/payments", h.PaymentsReport)
	})

	if deps.WS != nil {
		r.Get("/ws/kitchen", deps.WS.KitchenWS)
	}

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
