package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftbox/internal/autosave"
	"github.com/debemdeboas/draftbox/internal/config"
	"github.com/debemdeboas/draftbox/internal/db"
	"github.com/debemdeboas/draftbox/internal/handler"
	"github.com/debemdeboas/draftbox/internal/logger"
	"github.com/debemdeboas/draftbox/internal/repository"
	"github.com/debemdeboas/draftbox/internal/routes"
	"github.com/debemdeboas/draftbox/internal/service"
	"github.com/debemdeboas/draftbox/internal/sse"
	"github.com/debemdeboas/draftbox/internal/transport"
)

const (
	shutdownTimeout      = 10 * time.Second
	sessionSweepInterval = time.Minute
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	envErr := godotenv.Load()

	// Config is read before the logger exists; its own messages go nowhere.
	if err := config.LoadConfig(*configPath); err != nil {
		l := logger.New("info", logger.FormatConsole)
		l.Fatal().Err(err).Msgf(config.ErrLoadConfigFmt, *configPath)
	}
	cfg := config.AppConfig

	l := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if envErr != nil {
		l.Debug().Err(envErr).Msg("No .env file loaded")
	}
	setLoggers(l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, kind, err := repository.New(ctx, cfg.Storage)
	if err != nil {
		l.Fatal().Err(err).Msgf(config.ErrSelectBackendFmt, kind)
	}
	if closer, ok := repo.(io.Closer); ok {
		defer closer.Close()
	}
	l.Info().Str("backend", string(kind)).Msg("Draft storage selected")

	svc := service.NewDraftService(repo)
	clients := sse.NewSSEClients()
	sessions := autosave.NewRegistry(svc,
		autosave.WithDebounce(cfg.Autosave.Debounce()),
		autosave.WithSavedDisplay(cfg.Autosave.SavedDisplay()),
		autosave.WithStatusListener(handler.BroadcastStatus(clients)),
	)
	defer sessions.CloseAll()
	go sessions.Run(ctx, sessionSweepInterval, cfg.Autosave.SessionIdle())

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           routes.New(handler.NewDraftHandler(svc, sessions, clients), l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	l.Info().Str("addr", srv.Addr).Msg("Server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error().Err(err).Msg("Server stopped")
		return
	}
	l.Info().Msg("Server stopped")
}

func setLoggers(l zerolog.Logger) {
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	transport.SetLogger(l.With().Str("component", "transport").Logger())
	repository.SetLogger(l.With().Str("component", "repository").Logger())
	service.SetLogger(l.With().Str("component", "service").Logger())
	autosave.SetLogger(l.With().Str("component", "autosave").Logger())
	handler.SetLogger(l.With().Str("component", "handler").Logger())
}
