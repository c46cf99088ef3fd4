package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"

	"placedex/internal/boundaries"
	"placedex/internal/models"
)

var (
	// ErrMissingSpider marks a feature without the required @spider id.
	ErrMissingSpider = errors.New("feature has no @spider id")

	// ErrNoCountry marks a feature whose coordinate cannot be resolved to
	// a country. Such features are dropped; country_code is mandatory.
	ErrNoCountry = errors.New("coordinate does not resolve to a country")
)

// Normalizer converts raw All The Places features into validated POI
// records. Resolution failures reject the single feature, never the run.
type Normalizer struct {
	index  *boundaries.Index
	logger *logrus.Logger
}

// NewNormalizer creates a normalizer backed by the given boundary index.
func NewNormalizer(index *boundaries.Index, logger *logrus.Logger) *Normalizer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Normalizer{
		index:  index,
		logger: logger,
	}
}

// Normalize builds a POI from one raw feature, or reports why the feature
// must be skipped. The brand id is left unset; it is assigned per file by
// the pipeline after the brand upsert.
func (n *Normalizer) Normalize(raw json.RawMessage) (*models.POI, error) {
	var feature models.RawFeature
	if err := json.Unmarshal(raw, &feature); err != nil {
		return nil, fmt.Errorf("parse feature: %w", err)
	}
	if feature.Properties.SpiderID == "" {
		return nil, ErrMissingSpider
	}

	props := feature.Properties
	point := parsePoint(feature.Geometry)
	countryCode, err := n.reverseGeocode(point)
	if err != nil {
		return nil, err
	}

	return &models.POI{
		SpiderID:      props.SpiderID,
		POIName:       resolveName(props.Name, props.Brand),
		Website:       resolveWebsite(props.Website, props.SourceURI),
		OpeningHours:  props.OpeningHours,
		Phone:         props.Phone,
		Point:         point,
		City:          props.AddressCity,
		Zipcode:       props.AddressPostcode,
		HouseNumber:   props.AddressHouseNum,
		StreetAddress: props.AddressStreetAddr,
		Country:       props.AddressCountry,
		CountryCode:   countryCode,
		State:         props.AddressState,
		FullAddress:   props.AddressFull,
		StreetName:    props.AddressStreet,
	}, nil
}

// resolveName picks the display name: name wins over brand.
func resolveName(name, brand *string) *string {
	if name != nil {
		return name
	}
	return brand
}

// resolveWebsite canonicalizes the first parseable URL candidate down to
// its bare hostname. The website property is tried before the source URI;
// malformed candidates are skipped silently.
func resolveWebsite(website, sourceURI *string) *string {
	for _, candidate := range []*string{website, sourceURI} {
		if candidate == nil {
			continue
		}
		parsed, err := url.Parse(*candidate)
		if err != nil {
			continue
		}
		if host := parsed.Hostname(); host != "" {
			return &host
		}
	}
	return nil
}

type rawGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// parsePoint extracts a lon/lat coordinate from a raw geometry. Anything
// that is not a well-formed Point counts as no geometry at all.
func parsePoint(raw json.RawMessage) *models.Point {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var geom rawGeometry
	if err := json.Unmarshal(raw, &geom); err != nil {
		return nil
	}
	if geom.Type != "Point" || len(geom.Coordinates) != 2 {
		return nil
	}
	lon, lat := geom.Coordinates[0], geom.Coordinates[1]
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return nil
	}

	return &models.Point{lon, lat}
}

func (n *Normalizer) reverseGeocode(point *models.Point) (string, error) {
	if point == nil {
		return "", ErrNoCountry
	}
	code, ok := n.index.Resolve(point.Lon(), point.Lat())
	if !ok {
		n.logger.WithFields(logrus.Fields{
			"lon": point.Lon(),
			"lat": point.Lat(),
		}).Debug("Coordinate not mapped to any country")
		return "", ErrNoCountry
	}
	return code, nil
}
