package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"dreamina/internal/domain/jsoncfg"
	"dreamina/internal/dreamina"
	"dreamina/internal/http/handlers"
	"dreamina/internal/http/httpapi"
	"dreamina/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	file, err := jsoncfg.Load(cfg.ConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ConfigPath).Msg("failed to load config file")
	}

	accounts, err := dreamina.NewRouter(file.Accounts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build account router")
	}

	// File-level poll tuning wins over environment defaults so one config
	// file can travel between deployments.
	client, err := dreamina.NewClient(dreamina.Options{
		BaseURL:              cfg.DreaminaBaseURL,
		CommerceURL:          cfg.CommerceBaseURL,
		ImagexURL:            cfg.ImagexBaseURL,
		Params:               &file.Params,
		Logger:               &logger,
		RequestTimeout:       cfg.RequestTimeout,
		PollInterval:         file.Timeout.CheckInterval(),
		MaxWait:              file.Timeout.MaxWait(),
		AbortOnUploadFailure: cfg.AbortOnUploadFailure,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build client")
	}

	app := handlers.NewApp(client, accounts, &logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
