package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"placedex/config"
	"placedex/internal/boundaries"
	"placedex/internal/database"
	"placedex/internal/download"
	"placedex/internal/extract"
	"placedex/internal/normalize"
	"placedex/internal/pipeline"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	localDir := flag.String("dir", "", "ingest an already-extracted snapshot directory instead of downloading")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logger.WithField("path", cfg.BoundariesPath).Info("Loading country boundaries")
	index, err := boundaries.NewIndexFromFile(cfg.BoundariesPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load country boundaries")
	}
	logger.WithField("boundaries", index.Len()).Info("Country boundaries loaded")

	ctx := context.Background()
	store, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	sourceDir := *localDir
	if sourceDir == "" {
		sourceDir, err = fetchSnapshot(ctx, cfg, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to fetch snapshot")
		}
	}

	normalizer := normalize.NewNormalizer(index, logger)
	extractor := extract.NewExtractor(normalizer, logger)
	pipe := pipeline.NewPipeline(store, extractor, logger)

	summary, err := pipe.Run(ctx, sourceDir)
	if err != nil {
		logger.WithError(err).Fatal("Ingestion run failed")
	}

	logger.WithFields(logrus.Fields{
		"processed": summary.FilesProcessed,
		"skipped":   summary.FilesSkipped,
		"pois":      summary.POIsLoaded,
	}).Info("Done")
}

// fetchSnapshot resolves, downloads and extracts the latest published
// archive, returning the directory holding the per-source files.
func fetchSnapshot(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (string, error) {
	client := download.NewClient(&http.Client{
		Timeout: time.Duration(cfg.Snapshot.HTTPTimeout) * time.Second,
	}, logger)

	url, err := client.LatestSnapshotURL(ctx, cfg.Snapshot.IndexURL)
	if err != nil {
		return "", err
	}

	archivePath := filepath.Join(cfg.Snapshot.DownloadDir, "output.zip")
	if err := client.Fetch(ctx, url, archivePath); err != nil {
		return "", err
	}
	if err := download.Unzip(archivePath, cfg.Snapshot.DownloadDir); err != nil {
		return "", err
	}

	// The archive unpacks its files into an output/ directory.
	return filepath.Join(cfg.Snapshot.DownloadDir, "output"), nil
}
