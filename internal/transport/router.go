package transport

import (
	"net/http"

	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/metrics"
	"marketingclass-be/internal/middleware"
	"marketingclass-be/internal/order"
	"marketingclass-be/internal/payment"
	"marketingclass-be/internal/payment/webhook"
	"marketingclass-be/internal/user"
	"marketingclass-be/internal/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Orders     order.Service
	Payments   payment.Service
	Users      user.Service
	Webhook    *webhook.Handler
	Metrics    *metrics.PaymentMetrics
	Limiter    *middleware.Limiter
	JWTSecret  []byte
	CORSOrigin string
}

func NewRouter(d Deps) *chi.Mux {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(logger.RequestIDMiddleware)
	r.Use(logger.LoggingMiddleware)
	r.Use(middleware.CORS(d.CORSOrigin))
	r.Use(middleware.Authenticate(d.JWTSecret))
	if d.Limiter != nil {
		r.Use(d.Limiter.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/metrics", h.Metrics)

	if d.Webhook != nil {
		r.Post("/webhook/payment", d.Webhook.PaymentWebhookHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{orderId}", h.GetOrder)
			r.Post("/{orderId}/cancel", h.CancelOrder)
		})

		r.Route("/payments/{orderId}", func(r chi.Router) {
			r.Get("/status", h.GetPaymentStatus)
			r.Get("/watch", h.WatchPaymentStatus)
			r.With(middleware.RequireAdmin).Patch("/status", h.UpdatePaymentStatus)
			r.Post("/simulate", h.SimulatePayment)
			r.Post("/verifications", h.AddVerification)
			r.Get("/verifications", h.ListVerifications)
			r.Get("/instructions", h.GetInstructions)
		})

		r.Get("/me", h.Me)
		r.Get("/me/courses", h.MyCourses)
		r.Get("/me/courses/{courseId}", h.CourseAccess)
	})

	return r
}
