package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cliproom/cliproom/dispatch"
	"github.com/cliproom/cliproom/environment"
	"github.com/cliproom/cliproom/services/processor"
	"github.com/cliproom/cliproom/session"
)

func main() {
	_ = godotenv.Load()
	if level, err := zerolog.ParseLevel(environment.GetLogLevel()); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	client := processor.NewClient(environment.GetProcessorBaseURL()).
		WithTimeout(environment.GetDispatchTimeout())
	dispatcher := dispatch.NewDispatcher(client, environment.GetDispatchTimeout())
	sessions := session.NewManager(dispatcher,
		environment.GetSpoolDir(),
		environment.GetSessionTTL(),
		environment.GetMaxMergeClips())

	srv := &server{
		sessions: sessions,
		client:   client,
	}

	router := gin.Default()
	router.Use(cors.Default())
	srv.registerRoutes(router)

	httpServer := &http.Server{
		Addr:    ":" + environment.GetPort(),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("session api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	sessions.Shutdown()
	log.Info().Msg("server exited")
}
