package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"placedex/internal/models"
	"placedex/internal/normalize"
)

// ErrEmptyFile marks a zero-length source file.
var ErrEmptyFile = errors.New("file is empty")

// Extractor turns one source file into a brand record plus a batch of
// normalized POIs. A broken file is reported to the caller; a broken
// feature only costs that feature.
type Extractor struct {
	normalizer *normalize.Normalizer
	logger     *logrus.Logger
}

// NewExtractor creates an extractor using the given normalizer.
func NewExtractor(normalizer *normalize.Normalizer, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Extractor{
		normalizer: normalizer,
		logger:     logger,
	}
}

// featureCollection is the shape of a source file. Features stay raw so one
// malformed feature cannot fail the whole file's parse.
type featureCollection struct {
	Type              string                    `json:"type"`
	DatasetAttributes *models.DatasetAttributes `json:"dataset_attributes"`
	Features          []json.RawMessage         `json:"features"`
}

// featureBrand is the minimal per-feature view needed for the brand
// fallback when a file carries no dataset attributes.
type featureBrand struct {
	Properties struct {
		Brand         *string `json:"brand"`
		BrandWikidata *string `json:"@brand:wikidata"`
	} `json:"properties"`
}

// ExtractFile parses one source file and returns its brand and every
// feature that survived normalization. A file yielding zero usable POIs is
// still a success with an empty batch.
func (e *Extractor) ExtractFile(path string) (*models.Brand, []models.POI, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var collection featureCollection
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if collection.Features == nil {
		return nil, nil, fmt.Errorf("%s has no features array", path)
	}

	pois := make([]models.POI, 0, len(collection.Features))
	for i, raw := range collection.Features {
		poi, err := e.normalizer.Normalize(raw)
		if err != nil {
			e.logger.WithError(err).WithFields(logrus.Fields{
				"file":    path,
				"feature": i,
			}).Debug("Skipping feature")
			continue
		}
		pois = append(pois, *poi)
	}

	brand := e.deriveBrand(path, &collection)
	e.logger.WithFields(logrus.Fields{
		"file":  path,
		"brand": brand.Name,
		"pois":  len(pois),
		"total": len(collection.Features),
	}).Info("Extracted file")

	return brand, pois, nil
}

// deriveBrand resolves the file's one brand: dataset attributes first, then
// the first non-empty per-feature brand, finally the file name stem.
// Per-feature brand variance within one file is unsupported; it is logged
// and the first value kept.
func (e *Extractor) deriveBrand(path string, collection *featureCollection) *models.Brand {
	brand := &models.Brand{}

	if attrs := collection.DatasetAttributes; attrs != nil && attrs.Brand != nil && *attrs.Brand != "" {
		brand.Name = *attrs.Brand
		brand.WikidataID = attrs.BrandWikidata
		return brand
	}

	for _, raw := range collection.Features {
		var fb featureBrand
		if err := json.Unmarshal(raw, &fb); err != nil {
			continue
		}
		if fb.Properties.Brand == nil || *fb.Properties.Brand == "" {
			continue
		}
		if brand.Name == "" {
			brand.Name = *fb.Properties.Brand
			brand.WikidataID = fb.Properties.BrandWikidata
		} else if brand.Name != *fb.Properties.Brand {
			e.logger.WithFields(logrus.Fields{
				"file":  path,
				"brand": brand.Name,
				"other": *fb.Properties.Brand,
			}).Warn("File mixes multiple brands, keeping the first")
			break
		}
	}

	if brand.Name == "" {
		brand.Name = fileStem(path)
	}
	return brand
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
