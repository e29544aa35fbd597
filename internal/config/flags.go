package config

import (
	"flag"
)

// parseFlags overlays command-line flags on config.
//
//	-port string        HTTP listen port
//	-data-dir string    directory for the sqlite file, uploads and profiles
//	-repository string  memory or sql
//	-dsn string         postgres URL or sqlite path
//	-scorer string      random or stroke
//	-image-store string disk or s3
//	-log-level string   debug, info, warn or error
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("scriptmatch", flag.ContinueOnError)

	fs.StringVar(&config.Port, "port", config.Port, "HTTP listen port")
	fs.StringVar(&config.DataDir, "data-dir", config.DataDir, "data directory")
	fs.StringVar(&config.Repository, "repository", config.Repository, "repository backend (memory|sql)")
	fs.StringVar(&config.DatabaseDSN, "dsn", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Scorer, "scorer", config.Scorer, "scorer implementation (random|stroke)")
	fs.StringVar(&config.ImageStore, "image-store", config.ImageStore, "processed image store (disk|s3)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	return fs.Parse(args)
}
