package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"placedex/internal/models"
)

// Store is the storage surface the driver needs.
type Store interface {
	TruncateAll(ctx context.Context) error
	UpsertBrand(ctx context.Context, brand *models.Brand) (int32, error)
	LoadPOIs(ctx context.Context, brandID int32, pois []models.POI) error
}

// Extractor turns one source file into a brand and its POI batch.
type Extractor interface {
	ExtractFile(path string) (*models.Brand, []models.POI, error)
}

// Summary reports what one run accomplished.
type Summary struct {
	FilesProcessed int
	FilesSkipped   int
	POIsLoaded     int
}

// Pipeline drives a full ingestion run: truncate once, then per file
// extract, upsert the brand and bulk-load its POIs. Files are processed
// sequentially; a failing file is skipped, a failing truncation aborts.
type Pipeline struct {
	store     Store
	extractor Extractor
	logger    *logrus.Logger
}

// NewPipeline creates a pipeline over the given store and extractor.
func NewPipeline(store Store, extractor Extractor, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Pipeline{
		store:     store,
		extractor: extractor,
		logger:    logger,
	}
}

// Run ingests every file at the top level of dir. Both target tables are
// truncated before the first file; nothing downstream is safe to run
// against un-truncated tables, so a truncation failure aborts the run.
func (p *Pipeline) Run(ctx context.Context, dir string) (*Summary, error) {
	if err := p.store.TruncateAll(ctx); err != nil {
		return nil, fmt.Errorf("truncate target tables: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory %s: %w", dir, err)
	}

	summary := &Summary{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		path := filepath.Join(dir, entry.Name())
		if err := p.ingestFile(ctx, path, summary); err != nil {
			p.logger.WithError(err).WithField("file", path).Warn("Skipping file")
			summary.FilesSkipped++
		}
	}

	p.logger.WithFields(logrus.Fields{
		"processed": summary.FilesProcessed,
		"skipped":   summary.FilesSkipped,
		"pois":      summary.POIsLoaded,
	}).Info("Ingestion run complete")
	return summary, nil
}

// ingestFile runs the per-file sequence. The brand upsert commits before
// the POI load starts so every loaded row references an existing brand.
func (p *Pipeline) ingestFile(ctx context.Context, path string, summary *Summary) error {
	brand, pois, err := p.extractor.ExtractFile(path)
	if err != nil {
		return err
	}

	brandID, err := p.store.UpsertBrand(ctx, brand)
	if err != nil {
		return fmt.Errorf("upsert brand %q: %w", brand.Name, err)
	}

	if err := p.store.LoadPOIs(ctx, brandID, pois); err != nil {
		return fmt.Errorf("load %d pois: %w", len(pois), err)
	}

	summary.FilesProcessed++
	summary.POIsLoaded += len(pois)
	p.logger.WithFields(logrus.Fields{
		"file":     path,
		"brand_id": brandID,
		"pois":     len(pois),
	}).Info("File ingested")
	return nil
}
