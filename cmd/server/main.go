package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"airlock-server/internal/client"
	"airlock-server/internal/domain"
	"airlock-server/internal/engine"
	"airlock-server/internal/infrastructure/storage"
	"airlock-server/internal/server"
	"airlock-server/internal/version"
	"airlock-server/pkg/logger"
)

func init() {
	// .env необязателен: в проде все приходит из окружения
	_ = godotenv.Load()
	logger.Init()
}

func main() {
	var replayPath string
	flag.StringVar(&replayPath, "replay", "", "Path to .airlock recording to play back")
	flag.Parse()

	logger.Log.Info("Starting Airlock server...")
	logger.Log.Info(version.String())

	// РЕЖИМ ВОСПРОИЗВЕДЕНИЯ
	if replayPath != "" {
		if err := runPlayback(replayPath); err != nil {
			logger.Log.WithError(err).Fatal("Playback failed")
		}
		return
	}

	cfg := server.LoadConfig()

	recordings := storage.NewService(cfg.RecordingDir)
	archive, err := storage.OpenArchive(cfg.ArchivePath)
	if err != nil {
		logger.Log.WithError(err).Warn("Archive unavailable, continuing without it")
		archive = nil
	} else {
		defer archive.Close()
	}

	manager := server.NewManager(version.Protocol(), recordings, archive)
	srv := server.New(manager, cfg, archive)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	// Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Log.Infof("Airlock server running on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Server start error")
		}
	}()

	<-stop
	logger.Log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Warn("Shutdown was not clean")
	}
	logger.Log.Info("Done.")
}

// runPlayback прокручивает запись от начала до конца в ускоренном
// темпе и печатает, чем кончилась партия.
func runPlayback(path string) error {
	recordings := storage.NewService(".")
	rec, err := recordings.Load(path, version.Protocol())
	if err != nil {
		var mismatch *storage.VersionMismatchError
		if errors.As(err, &mismatch) {
			logger.Log.WithError(mismatch).Warn("Recording was made by a different build, playback may diverge")
			rec, err = recordings.Load(path, "")
		}
		if err != nil {
			return err
		}
	}

	logger.Log.WithFields(logrus.Fields{
		"game_id":  rec.GameID,
		"entries":  len(rec.Entries),
		"duration": rec.Duration(),
	}).Info("Playing back recording")

	playback := engine.NewPlaybackServer(rec)
	observer := client.NewGameAsPlayer(client.NopTx{})
	observer.Restart()

	for {
		finished, err := playback.Simulate(domain.TickUnit, observer, true)
		if err != nil {
			return err
		}
		observer.Simulate(domain.TickUnit)
		if finished {
			break
		}
	}

	state := playback.State()
	logger.Log.WithFields(logrus.Fields{
		"status":  state.Status.Kind,
		"winner":  state.Status.Winner,
		"players": len(state.Players),
		"bodies":  len(state.Bodies),
	}).Info("Playback finished")
	return nil
}
