package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokentrail/internal/auth"
	"tokentrail/internal/config"
	"tokentrail/internal/db"
	"tokentrail/internal/logger"
	"tokentrail/internal/security"
	"tokentrail/internal/server"
	sessionrepo "tokentrail/internal/session/repository"
	userrepo "tokentrail/internal/user/repository"
)

func main() {
	logger.SetPrefix("server")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	hasher := security.NewHasher()
	tokens := security.NewTokenProvider([]byte(cfg.JWTAccessSecret), cfg.AccessTTL())

	svc := auth.NewService(
		userrepo.NewPostgresRepository(pool),
		sessionrepo.NewPostgresRepository(pool),
		hasher,
		tokens,
		cfg.RefreshTTL(),
	)
	binder := &auth.CookieBinder{
		Name:   cfg.CookieNameRefresh,
		Secure: cfg.SecureCookies,
		MaxAge: cfg.RefreshTTL(),
	}

	router := server.NewRouter(auth.NewHandler(svc, binder), tokens, cfg.CORSOrigin)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	logger.Info("HTTP server stopped")
}
