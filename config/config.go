package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	// Database connection parameters
	Database struct {
		Host     string `env:"DBHOST" envDefault:"localhost"`
		Port     string `env:"DBPORT" envDefault:"5432"`
		User     string `env:"DBUSER" envDefault:"postgres"`
		Password string `env:"DBPASSWORD"`
		Name     string `env:"DBNAME" envDefault:"placedex"`

		// Pool size; ingestion is sequential so a small pool suffices
		MaxConns int `env:"DB_MAX_CONNS" envDefault:"5"`
	}

	// Snapshot download configuration
	Snapshot struct {
		// Page listing the latest published snapshot
		IndexURL string `env:"SNAPSHOT_INDEX_URL" envDefault:"https://data.alltheplaces.xyz/runs/latest/info_embed.html"`

		// Working directory for the downloaded archive and its contents
		DownloadDir string `env:"DOWNLOAD_DIR" envDefault:"temp"`

		// Single fixed timeout for the whole fetch, in seconds
		HTTPTimeout int `env:"HTTP_TIMEOUT_SECONDS" envDefault:"120"`
	}

	// Country boundary dataset (GeoJSON FeatureCollection)
	BoundariesPath string `env:"BOUNDARIES_PATH" envDefault:"data/boundaries.geojson"`

	// Read API listen port
	Port string `env:"PORT" envDefault:"8080"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DSN builds the keyword/value connection string understood by pgx.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s port=%s dbname=%s",
		c.Database.Host, c.Database.User, c.Database.Password, c.Database.Port, c.Database.Name)
}
