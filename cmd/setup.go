package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/facelog/internal/config"
	"github.com/kozaktomas/facelog/internal/database"
	"github.com/kozaktomas/facelog/internal/database/postgres"
	"github.com/kozaktomas/facelog/internal/facematch"
	"github.com/kozaktomas/facelog/internal/logger"
	"github.com/kozaktomas/facelog/internal/metrics"
	"github.com/kozaktomas/facelog/internal/recognition"
	"github.com/kozaktomas/facelog/internal/storage"
)

// app holds everything a command needs to talk to the identity store.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	pool    *postgres.Pool
	metrics *metrics.Manager
	service *recognition.Service
}

// newLogger builds the logger from config, letting the persistent flags win.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, format := cfg.Log.Level, cfg.Log.Format
	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}
	return logger.New(level, format)
}

// newDetector builds the cascade detector from the configured profiles.
func newDetector(cfg *config.Config) (*facematch.Detector, error) {
	classifier := facematch.NewPigoClassifier(cfg.Face.CascadePath)
	if err := classifier.Load(); err != nil {
		return nil, fmt.Errorf("FACE_CASCADE_PATH: %w", err)
	}

	profiles := make([]facematch.Profile, 0, len(cfg.Face.Profiles))
	for _, p := range cfg.Face.Profiles {
		profiles = append(profiles, facematch.Profile{
			Name:         p.Name,
			ScaleFactor:  p.ScaleFactor,
			MinNeighbors: p.MinNeighbors,
			MinSize:      p.MinSize,
			Equalize:     p.Equalize,
		})
	}
	return facematch.NewDetector(classifier, profiles), nil
}

// openApp connects to PostgreSQL, applies migrations and builds the recognition service.
func openApp(ctx context.Context, opts ...recognition.Option) (*app, error) {
	cfg := config.Load()

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	detector, err := newDetector(cfg)
	if err != nil {
		return nil, err
	}

	images, err := storage.NewFileStore(cfg.Storage.ImageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open image store: %w", err)
	}

	pool, err := postgres.Open(ctx, &cfg.Database, log)
	if err != nil {
		return nil, err
	}
	postgres.Register(pool)

	identities, err := database.GetIdentityWriter(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}
	logs, err := database.GetRecognitionLogWriter(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	m := metrics.NewManager()
	opts = append([]recognition.Option{
		recognition.WithRecognitionLog(logs),
		recognition.WithMetrics(m),
		recognition.WithLogger(log),
		recognition.WithDuplicateThreshold(cfg.Face.DuplicateThreshold),
		recognition.WithIndexPath(cfg.Database.HNSWIndexPath),
		recognition.WithMatcherOptions(
			facematch.WithThreshold(cfg.Face.AcceptThreshold),
			facematch.WithWorkers(cfg.Face.MatchWorkers),
		),
	}, opts...)
	svc := recognition.New(identities, images, detector, opts...)

	return &app{
		cfg:     cfg,
		logger:  log,
		pool:    pool,
		metrics: m,
		service: svc,
	}, nil
}

// Close releases the database pool and flushes the logger.
func (a *app) Close() {
	if err := a.pool.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// saveIndex persists the signature index when HNSW_INDEX_PATH is set.
func (a *app) saveIndex() {
	path := a.cfg.Database.HNSWIndexPath
	if path == "" {
		return
	}
	if err := a.service.Index().SaveWithMetadata(path); err != nil {
		a.logger.Warn("failed to save signature index", zap.String("path", path), zap.Error(err))
		return
	}
	a.logger.Info("signature index saved", zap.String("path", path), zap.Int("identities", a.service.Index().Count()))
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
