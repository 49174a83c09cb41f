package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cart-sync-service/internal/backend"
	"cart-sync-service/internal/consumer"
	"cart-sync-service/internal/httpapi"
	"cart-sync-service/internal/persist"
	"cart-sync-service/internal/session"
	"cart-sync-service/internal/syncer"
	"cart-sync-service/internal/transport"
	"cart-sync-service/pkg/config"
	"cart-sync-service/pkg/logger"
	"cart-sync-service/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service: "cart-sync-service",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Durable slot: Redis when configured, in-process otherwise.
	var slot persist.Slot
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		log.Info("using redis cart slot", "addr", cfg.RedisAddr)
		slot = persist.NewRedisSlot(redisClient)
	} else {
		log.Info("using in-memory cart slot")
		slot = persist.NewMemorySlot()
	}

	endpoint := cfg.CookieEndpointURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("http://localhost:%s/api/cart", cfg.HTTPPort)
	}
	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		log.Error("invalid cookie endpoint URL", "url", endpoint, "error", err)
		os.Exit(1)
	}

	// Each session gets its own transport with a cookie jar carrying the
	// session id, so Set-Cookie responses stay scoped to that session.
	newTransport := func(sid string) syncer.Transport {
		jar, _ := cookiejar.New(nil)
		jar.SetCookies(endpointURL, []*http.Cookie{{
			Name:  httpapi.SessionCookieName,
			Value: sid,
		}})
		return transport.NewCookieClient(endpoint, &http.Client{
			Timeout: 5 * time.Second,
			Jar:     jar,
		})
	}

	registry := session.NewRegistry(slot, newTransport, cfg.SyncDebounce, log)
	catalog := backend.NewMemoryCatalog(backend.SeedProducts())

	cartHandler := httpapi.NewCartHandler(registry, catalog, log)
	cookieHandler := httpapi.NewCookieHandler(cfg.Production(), log)
	router := httpapi.NewRouter(cartHandler, cookieHandler, cfg.Production(), cfg.RequestTimeout)

	if len(cfg.KafkaBrokers) > 0 {
		cons := consumer.New(registry, cfg.KafkaTopic, log, cfg.KafkaBrokers...)
		defer cons.Close()
		go cons.Run(ctx)
		log.Info("checkout consumer started", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "cart-sync-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("http server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	// Flush pending cookie syncs before exit.
	registry.Close()
	log.Info("server exited")
}
