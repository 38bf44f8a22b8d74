// Package cliapp implements the bdp-server command-line entrypoint: flag and
// config-file handling via cobra/viper, service wiring, and graceful
// shutdown of the HTTP API server.
package cliapp

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/biopkg/bdp/internal/apiserver"
	"github.com/biopkg/bdp/internal/blobstore"
	"github.com/biopkg/bdp/internal/config"
	"github.com/biopkg/bdp/internal/dbpg"
	"github.com/biopkg/bdp/internal/ingest"
	"github.com/biopkg/bdp/internal/logging"
	"github.com/biopkg/bdp/internal/search"
)

var cfgFile string

// RootCmd is the entrypoint for the bdp-server binary: it loads
// configuration, wires the Postgres metadata store and S3-compatible blob
// store, and serves the registry/resolver/audit HTTP API.
var RootCmd = &cobra.Command{
	Use:   "bdp-server",
	Short: "BDP registry and manifest resolver API server",
	Long: `bdp-server hosts the BDP registry API: organization and data-source
management, ingestion job status, manifest resolution, search, and the
server-side audit trail.

Configuration can be provided via environment variables, command-line
flags, or a YAML configuration file, with flags taking precedence.`,
	Run: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bdp-server.yaml)")
	RootCmd.PersistentFlags().String("host", "", "server bind address")
	RootCmd.PersistentFlags().String("port", "", "server port")
	RootCmd.PersistentFlags().String("database-url", "", "Postgres connection string")
	RootCmd.PersistentFlags().String("s3-bucket", "", "S3-compatible bucket for blob storage")
	RootCmd.PersistentFlags().String("jwt-secret", "", "JWT signing secret")
	RootCmd.PersistentFlags().String("admin-password-hash", "", "bcrypt hash gating the admin ingestion route")

	viper.BindPFlag("host", RootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("database_url", RootCmd.PersistentFlags().Lookup("database-url"))
	viper.BindPFlag("s3_bucket", RootCmd.PersistentFlags().Lookup("s3-bucket"))
	viper.BindPFlag("jwt_secret", RootCmd.PersistentFlags().Lookup("jwt-secret"))
	viper.BindPFlag("admin_password_hash", RootCmd.PersistentFlags().Lookup("admin-password-hash"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".bdp-server")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Println("using config file:", viper.ConfigFileUsed())
	}

	// Flag/config-file values take precedence over bare environment
	// variables for the keys LoadServerConfig also reads directly.
	for _, key := range []string{"host", "port", "database_url", "s3_bucket", "jwt_secret", "admin_password_hash"} {
		if v := viper.GetString(key); v != "" {
			os.Setenv(envKeyFor(key), v)
		}
	}
}

func envKeyFor(viperKey string) string {
	switch viperKey {
	case "database_url":
		return "DATABASE_URL"
	case "s3_bucket":
		return "S3_BUCKET"
	case "jwt_secret":
		return "JWT_SECRET"
	case "admin_password_hash":
		return "ADMIN_PASSWORD_HASH"
	default:
		return viperKey
	}
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logging.Configure(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gdb, err := dbpg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	pg, err := dbpg.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to open raw connection pool: %v", err)
	}

	if err := search.EnsureView(ctx, pg); err != nil {
		log.Fatalf("failed to create search index: %v", err)
	}
	if err := search.Refresh(ctx, pg); err != nil {
		log.Printf("warning: initial search index refresh failed: %v", err)
	}

	store, err := blobstore.New(ctx, cfg.S3)
	if err != nil {
		log.Fatalf("failed to initialize blob store: %v", err)
	}

	jwtService := apiserver.NewJWTService(cfg.JWTSecret)

	if cfg.Admin.PasswordHash == "" {
		log.Println("warning: ADMIN_PASSWORD_HASH not set; the admin ingestion route is unreachable until it is")
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowCredentials: cfg.CORS.AllowCredentials,
	}))
	if cfg.RateLimitPerMinute > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0))))
	}

	ingestDeps := &ingest.Dependencies{
		Entries:  dbpg.NewRegistryEntryRepository(gdb),
		Versions: dbpg.NewVersionRepository(gdb),
		Jobs:     dbpg.NewIngestionJobRepository(gdb),
		Store:    store,
		Cfg:      cfg.Ingest,
	}

	deps := &apiserver.Dependencies{
		DB:       gdb,
		PG:       pg,
		Store:    store,
		JWT:      jwtService,
		GrantTTL: cfg.DownloadGrantTTL,
		Admin:    cfg.Admin,
		Ingest:   ingestDeps,
	}
	apiserver.RegisterRoutes(e, deps)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
		log.Printf("bdp-server listening on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}
