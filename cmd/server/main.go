package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/innkeep/hotel-system/internal/api"
	"github.com/innkeep/hotel-system/internal/api/handler"
	"github.com/innkeep/hotel-system/internal/core/service"
	mongodb "github.com/innkeep/hotel-system/internal/infrastructure/db/mongo"
	redisdb "github.com/innkeep/hotel-system/internal/infrastructure/db/redis"
	"github.com/innkeep/hotel-system/internal/infrastructure/mail"
	"github.com/innkeep/hotel-system/internal/infrastructure/oauth"
	"github.com/innkeep/hotel-system/internal/infrastructure/queue"
	"github.com/innkeep/hotel-system/internal/pkg/config"
	"github.com/innkeep/hotel-system/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "hotel-identity",
		Env:     cfg.Env,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		TLS:      cfg.Redis.TLS,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	users := mongodb.NewUserRepository(db)
	profiles := mongodb.NewProfileRepository(db)
	invitations := mongodb.NewInvitationRepository(db)
	for name, ensure := range map[string]func(context.Context) error{
		"users":         users.EnsureIndexes,
		"role_profiles": profiles.EnsureIndexes,
		"invitations":   invitations.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Fatal().Err(err).Str("collection", name).Msg("failed to ensure indexes")
		}
	}

	// --- Outbound mail ---
	var transport mail.Transport
	if cfg.Mail.ResendAPIKey != "" {
		rt, err := mail.NewResendTransport(cfg.Mail.ResendAPIKey, cfg.Mail.From, cfg.Mail.FromName)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure resend")
		}
		transport = rt
	} else {
		log.Warn().Msg("RESEND_API_KEY not set, outbound mail is logged only")
		transport = mail.NewLogTransport(logger.For("mail"))
	}
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, mail.NewRenderer(cfg.Mail.FromName), transport, logger.For("notifications"))
	dispatcher.Start()

	// --- Identity services ---
	opts := service.Options{
		AppBaseURL:     cfg.AppBaseURL,
		ResetTokenTTL:  cfg.Auth.ResetTokenTTL,
		InviteTTL:      cfg.Auth.InviteTTL(),
		ResendCooldown: cfg.Auth.ResendCooldown,
	}
	creds := service.NewCredentialVerifier(cfg.Auth.BcryptCost)
	otp := service.NewOTPChallenge(users, cfg.Auth.OTPTTL, opts.Clock)
	sessions := service.NewSessionTokenIssuer(users, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL, opts.Clock)
	approval := service.NewApprovalWorkflow(users, profiles, otp, creds, dispatcher, opts, logger.For("approval"))
	social := service.NewSocialLinkResolver(users, profiles, opts, logger.For("social"))
	authService := service.NewAuthService(users, profiles, creds, otp, sessions, approval, social,
		dispatcher, redisdb.NewResendThrottle(rdb), opts, logger.For("auth"))
	ledger := service.NewInvitationLedger(invitations, users, profiles, creds, otp, dispatcher, opts, logger.For("invitations"))

	// --- HTTP ---
	var google *handler.GoogleHandler
	if cfg.Google.Enabled() {
		provider := oauth.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
		google = handler.NewGoogleHandler(provider, redisdb.NewOAuthStateStore(rdb, 0), authService, cfg.AppBaseURL, logger.For("oauth"))
	}
	router := api.NewRouter(api.Handlers{
		Auth:    handler.NewAuthHandler(authService, ledger),
		Account: handler.NewAccountHandler(authService),
		Admin:   handler.NewAdminHandler(approval, authService, ledger),
		Google:  google,
		Health: handler.NewHealthHandler(map[string]handler.Check{
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
	}, sessions, logger.For("http"))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Bool("google_sign_in", cfg.Google.Enabled()).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("notification queue not drained")
	}
}
