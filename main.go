package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"DiaBot/controllers"
	"DiaBot/middleware"
	"DiaBot/pkg/chat"
	"DiaBot/pkg/config"
	"DiaBot/pkg/database"
	"DiaBot/pkg/logger"
	"DiaBot/pkg/services"
	"DiaBot/pkg/session"
	"DiaBot/pkg/store"
	tokenstore "DiaBot/pkg/token"
	"DiaBot/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const janitorInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("[config] invalid configuration")
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("[logger] init failed")
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		lg.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to connect database")
	}
	if err := database.Migrate(db); err != nil {
		lg.Fatal().Err(err).Msg("failed migrate")
	}

	responder, err := services.NewResponder(cfg)
	if err != nil {
		lg.Fatal().Err(err).Msg("[responder] init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	convs := store.NewConversationStore(db)
	sessions := session.NewStore(cfg.SessionMaxItems, cfg.SessionTTL(), cfg.SessionMaxTurns)
	revoked := tokenstore.New()
	go sessions.Cache().RunJanitor(ctx, janitorInterval)
	go revoked.Cache().RunJanitor(ctx, janitorInterval)

	h := &controllers.Handler{
		Users: store.NewUserStore(db),
		Convs: convs,
		Chat: chat.NewReconciler(convs, responder, chat.Options{
			NewChatPolicy:    chat.NewChatPolicy(cfg.NewChatPolicy),
			CommitMode:       chat.CommitMode(cfg.CommitMode),
			ResponderTimeout: cfg.ResponderTimeout(),
			ProviderName:     cfg.ResponderProvider,
		}),
		Auth: middleware.NewAuthenticator(cfg.JWTSecret, cfg.TokenLifetime, revoked),
		Limiter: middleware.NewLimiter(
			time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
			cfg.RateLimitCapacity,
			cfg.UserConcurrencyLimit,
			time.Duration(cfg.DuplicateWindowSeconds)*time.Second,
		),
		Sessions: sessions,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.Logging(lg))

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", middleware.SessionHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.SessionHeader, "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, h, cfg.IsProduction())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error().Err(err).Msg("shutdown failed")
		}
	}()

	lg.Info().Str("port", cfg.Port).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal().Err(err).Msg("server error")
	}
}
