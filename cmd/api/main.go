package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fairwaylabs/clubhouse/internal/booking"
	"github.com/fairwaylabs/clubhouse/internal/catalog"
	"github.com/fairwaylabs/clubhouse/internal/gatekeeper"
	"github.com/fairwaylabs/clubhouse/internal/guestaccess"
	"github.com/fairwaylabs/clubhouse/internal/gymmaster"
	"github.com/fairwaylabs/clubhouse/internal/http/handlers"
	hmw "github.com/fairwaylabs/clubhouse/internal/http/middleware"
	"github.com/fairwaylabs/clubhouse/internal/members"
	"github.com/fairwaylabs/clubhouse/internal/notify"
	"github.com/fairwaylabs/clubhouse/internal/payments"
	"github.com/fairwaylabs/clubhouse/internal/referral"
	"github.com/fairwaylabs/clubhouse/internal/repo/postgres"
	"github.com/fairwaylabs/clubhouse/pkg/config"
	"github.com/fairwaylabs/clubhouse/pkg/database"
	"github.com/fairwaylabs/clubhouse/pkg/events"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
	mw "github.com/fairwaylabs/clubhouse/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := redisClient(cfg.Redis)

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Remote SaaS clients
	gym := gymmaster.NewClient(cfg.GymMaster)
	doors := gatekeeper.NewClient(cfg.Gatekeeper)

	// Catalog cache and duration policy
	cache := catalog.New(gym, rdb, cfg.Club.CatalogTTL)

	// Notification channels; dev mode logs instead of sending
	var mailer notify.Mailer = notify.NewMailerSendMailer(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail)
	var sms notify.SMSSender = notify.NewTwilioSMS(cfg.Twilio)
	if cfg.Email.DevMode {
		mailer = notify.DevMailer{}
		sms = notify.DevSMS{}
	}
	notifier := notify.NewService(mailer, sms, cfg.Club)

	charger := payments.NewStripeCharger(cfg.Stripe, cfg.Club.GuestPassPriceCents)
	access := guestaccess.NewService(rdb, cfg.Auth)

	memberSvc := members.NewService(gym, eventBus, cfg.Auth)
	bookingSvc := booking.NewService(gym, access, notifier, charger, eventBus, cfg.Club, cache.ResolverFor)
	referralSvc := referral.NewService(gym)

	idempotency := postgres.NewIdempotencyRepo(pool)

	authHandler := handlers.NewAuthHandler(memberSvc)
	bookingsHandler := handlers.NewBookingsHandler(bookingSvc, idempotency)
	guestsHandler := handlers.NewGuestsHandler(bookingSvc, access, referralSvc)
	doorsHandler := handlers.NewDoorsHandler(doors, eventBus)
	catalogHandler := handlers.NewCatalogHandler(cache)

	authLimiter := hmw.NewRateLimiter(pool, hmw.RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	})
	verifyLimiter := hmw.NewRateLimiter(pool, hmw.RateLimitConfig{
		Requests: 5,
		Window:   time.Minute,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("clubhouse-api"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.CORS)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(authLimiter.Middleware()).Mount("/auth", authHandler.Routes())
		r.Mount("/catalog", catalogHandler.Routes())

		r.With(verifyLimiter.Middleware()).Post("/guests/verify", guestsHandler.Verify)
		r.Get("/referrals/validate", guestsHandler.ValidateReferral)

		// Member surface
		r.Group(func(r chi.Router) {
			r.Use(hmw.RequireSession(cfg.Auth.JWTSecret))
			r.Mount("/bookings", bookingsHandler.Routes())
			r.Get("/guests/ledger", guestsHandler.Ledger)
			r.Mount("/doors", doorsHandler.Routes())
		})

		// Guests check in at the door with their invite session
		r.Group(func(r chi.Router) {
			r.Use(hmw.RequireGuestSession(cfg.Auth.JWTSecret))
			r.Post("/guest/doors/{id}/checkin", doorsHandler.CheckIn)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down clubhouse api...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting clubhouse api", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// redisClient builds the client from the configured URL; a bad URL
// degrades to nil and every cache consumer falls through to its source.
func redisClient(cfg config.RedisConfig) *redis.Client {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL, running without redis", "error", err)
		return nil
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	return redis.NewClient(opts)
}
