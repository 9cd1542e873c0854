package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketingclass-be/internal/config"
	"marketingclass-be/internal/course"
	"marketingclass-be/internal/db"
	"marketingclass-be/internal/events"
	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/metrics"
	"marketingclass-be/internal/middleware"
	"marketingclass-be/internal/order"
	"marketingclass-be/internal/payment"
	"marketingclass-be/internal/payment/webhook"
	"marketingclass-be/internal/transport"
	"marketingclass-be/internal/user"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = startServer
)

// server is the wired application: the HTTP handler plus background workers
// that live as long as the process.
type server struct {
	handler http.Handler
	workers []func(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(cfg, database)
	for _, work := range srv.workers {
		go func(work func(context.Context) error) {
			if err := work(ctx); err != nil {
				logger.L().Error("background worker stopped", zap.Error(err))
			}
		}(work)
	}

	logger.L().Info("HTTP server running",
		zap.String("port", cfg.AppPort),
		zap.String("payment_events", cfg.PaymentEvents),
	)
	return startServerFunc(ctx, ":"+cfg.AppPort, srv.handler)
}

func newServer(cfg *config.Config, database *sql.DB) *server {
	srv := &server{}
	m := metrics.NewPaymentMetrics()

	courseRepo := course.NewRepository(database)
	userSvc := user.NewService(user.NewRepository(database))
	orderRepo := order.NewRepository(database)
	orderSvc := order.NewService(orderRepo, courseRepo, userSvc)

	// Status fan-out. In postgres mode every replica hears changes through
	// LISTEN, so local publishes are suppressed.
	hub := events.NewHub[payment.Status]()
	var bus events.Bus[payment.Status] = hub
	var repoOpts []payment.Option
	if cfg.PaymentEvents == "postgres" {
		bus = events.Remote[payment.Status]{Hub: hub}
		repoOpts = append(repoOpts, payment.WithNotifyChannel(events.PaymentStatusChannel))
		bridge := events.NewPGBridge(db.DSN(cfg), events.PaymentStatusChannel, hub, func(st payment.Status) string {
			return st.OrderID
		})
		srv.workers = append(srv.workers, bridge.Run)
	}

	paymentRepo := payment.NewRepository(database, repoOpts...)
	gateway := payment.NewSimulator(
		newSimulatorConfig(cfg.Simulator),
		rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	)
	paymentSvc := payment.NewService(paymentRepo, orderRepo, gateway, bus, m)

	limiter := middleware.NewLimiter(cfg.InternalSecretKey)
	srv.workers = append(srv.workers, func(ctx context.Context) error {
		limiter.Cleanup(ctx)
		return nil
	})

	srv.handler = transport.NewRouter(transport.Deps{
		Orders:     orderSvc,
		Payments:   paymentSvc,
		Users:      userSvc,
		Webhook:    webhook.NewWebhookHandler(paymentSvc, orderSvc, paymentRepo, cfg.CallbackToken, m),
		Metrics:    m,
		Limiter:    limiter,
		JWTSecret:  []byte(cfg.JWTSecret),
		CORSOrigin: cfg.CORSOrigin,
	})
	return srv
}

func newSimulatorConfig(s config.SimulatorSettings) payment.SimulatorConfig {
	return payment.SimulatorConfig{
		WalletSuccessRate: s.WalletSuccessRate,
		CardSuccessRate:   s.CardSuccessRate,
		WalletMethods:     s.WalletMethods,
		CardMethods:       s.CardMethods,
	}
}

// startServer serves until ctx is cancelled, then drains in-flight requests.
func startServer(ctx context.Context, addr string, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.L().Info("shutting down HTTP server")
	return httpServer.Shutdown(shutdownCtx)
}
