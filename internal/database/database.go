package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"placedex/config"
	"placedex/internal/models"
)

// ErrNotFound is returned by lookups for ids that do not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the Postgres pool used by both the ingestion pipeline and
// the read API.
type Store struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// Connect builds the connection pool from the configured DSN and verifies
// the connection with a ping. Callers treat a failure as fatal.
func Connect(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.WithField("database", cfg.Database.Name).Info("Connected to database")
	return &Store{pool: pool, logger: logger}, nil
}

// NewStore wraps an existing pool; used by tests.
func NewStore(pool *pgxpool.Pool, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
	}
	return &Store{pool: pool, logger: logger}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the target relations when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis`,
		`CREATE TABLE IF NOT EXISTS brand (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			wikidata_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS poi (
			id SERIAL PRIMARY KEY,
			spider_id TEXT NOT NULL,
			poi_name TEXT,
			brand_id INTEGER NOT NULL REFERENCES brand(id),
			website TEXT,
			opening_hours TEXT,
			phone TEXT,
			point GEOMETRY(POINT),
			city TEXT,
			zipcode TEXT,
			house_number TEXT,
			street_address TEXT,
			country TEXT,
			country_code TEXT NOT NULL,
			state TEXT,
			full_address TEXT,
			street_name TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_poi_brand_id ON poi(brand_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// TruncateAll empties both target relations before a run, each in its own
// transaction. POIs reference brands, so poi is truncated first and the
// brand truncation cascades over the (already empty) referencing table.
func (s *Store) TruncateAll(ctx context.Context) error {
	for _, stmt := range []string{
		`TRUNCATE TABLE poi`,
		`TRUNCATE TABLE brand CASCADE`,
	} {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin truncate: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("%s: %w", stmt, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit truncate: %w", err)
		}
	}

	s.logger.Info("Truncated poi and brand tables")
	return nil
}

// UpsertBrand inserts the brand or resolves it to the existing row when
// the name is already taken. The no-op name update makes the insert return
// the existing id, so repeated runs with the same name are idempotent.
func (s *Store) UpsertBrand(ctx context.Context, brand *models.Brand) (int32, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin brand upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int32
	err = tx.QueryRow(ctx,
		`INSERT INTO brand (name, wikidata_id) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		brand.Name, brand.WikidataID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert brand %q: %w", brand.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit brand upsert: %w", err)
	}
	return id, nil
}

// LoadPOIs streams one file's batch through the COPY protocol in a single
// transaction. Either the whole batch lands or none of it does.
func (s *Store) LoadPOIs(ctx context.Context, brandID int32, pois []models.POI) error {
	if len(pois) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin poi load: %w", err)
	}
	defer tx.Rollback(ctx)

	buf := encodeBatch(brandID, pois)
	tag, err := tx.Conn().PgConn().CopyFrom(ctx, bytes.NewReader(buf), copyPOISQL)
	if err != nil {
		return fmt.Errorf("copy pois: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit poi load: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"brand_id": brandID,
		"rows":     tag.RowsAffected(),
	}).Info("Loaded POI batch")
	return nil
}

// GetBrand looks up one brand by id.
func (s *Store) GetBrand(ctx context.Context, id int32) (*models.Brand, error) {
	var b models.Brand
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, wikidata_id FROM brand WHERE id = $1`, id,
	).Scan(&b.ID, &b.Name, &b.WikidataID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get brand %d: %w", id, err)
	}
	return &b, nil
}

// RandomBrands returns up to limit brands in random order.
func (s *Store) RandomBrands(ctx context.Context, limit int) ([]models.Brand, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, wikidata_id FROM brand ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("random brands: %w", err)
	}
	defer rows.Close()

	brands := []models.Brand{}
	for rows.Next() {
		var b models.Brand
		if err := rows.Scan(&b.ID, &b.Name, &b.WikidataID); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

const poiSelect = `SELECT id, spider_id, poi_name, brand_id, website, opening_hours,
	phone, ST_AsText(point), city, zipcode, house_number, street_address,
	country, country_code, state, full_address, street_name FROM poi`

// GetPOI looks up one POI by id. The point comes back as WKT.
func (s *Store) GetPOI(ctx context.Context, id int32) (*models.POI, error) {
	poi, err := scanPOI(s.pool.QueryRow(ctx, poiSelect+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get poi %d: %w", id, err)
	}
	return poi, nil
}

// RandomPOIs returns up to limit POIs in random order.
func (s *Store) RandomPOIs(ctx context.Context, limit int) ([]models.POI, error) {
	rows, err := s.pool.Query(ctx, poiSelect+` ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("random pois: %w", err)
	}
	defer rows.Close()

	pois := []models.POI{}
	for rows.Next() {
		poi, err := scanPOI(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poi: %w", err)
		}
		pois = append(pois, *poi)
	}
	return pois, rows.Err()
}

// CountPOIsByBrand counts the persisted POIs referencing one brand.
func (s *Store) CountPOIsByBrand(ctx context.Context, brandID int32) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(1) FROM poi WHERE brand_id = $1`, brandID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pois for brand %d: %w", brandID, err)
	}
	return count, nil
}

func scanPOI(row pgx.Row) (*models.POI, error) {
	var poi models.POI
	var point *string
	err := row.Scan(
		&poi.ID, &poi.SpiderID, &poi.POIName, &poi.BrandID, &poi.Website,
		&poi.OpeningHours, &poi.Phone, &point, &poi.City, &poi.Zipcode,
		&poi.HouseNumber, &poi.StreetAddress, &poi.Country, &poi.CountryCode,
		&poi.State, &poi.FullAddress, &poi.StreetName,
	)
	if err != nil {
		return nil, err
	}
	if point != nil {
		parsed, err := parseWKTPoint(*point)
		if err != nil {
			return nil, fmt.Errorf("parse point %q: %w", *point, err)
		}
		poi.Point = parsed
	}
	return &poi, nil
}
