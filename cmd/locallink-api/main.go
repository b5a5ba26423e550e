package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/locallink-app/locallink/backend/internal/auth"
	"github.com/locallink-app/locallink/backend/internal/catalog"
	"github.com/locallink-app/locallink/backend/internal/config"
	"github.com/locallink-app/locallink/backend/internal/database"
	"github.com/locallink-app/locallink/backend/internal/directory"
	"github.com/locallink-app/locallink/backend/internal/logging"
	"github.com/locallink-app/locallink/backend/internal/metrics"
	"github.com/locallink-app/locallink/backend/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "locallink-api",
		Short: "LocalLink marketplace backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("auth-issuer", "", "Expected token issuer")
	cmd.PersistentFlags().String("auth-audience", "", "Expected token audience")
	cmd.PersistentFlags().String("auth-jwks-url", "", "Identity provider JWKS URL")
	cmd.PersistentFlags().String("directory-base-url", "", "Identity provider base URL")
	cmd.PersistentFlags().String("directory-org", "", "Identity provider organization")
	cmd.PersistentFlags().Bool("rate-limit-enabled", defaults.GetBool("rate_limit.enabled"), "Enable rate limiting on the public listing route")
	cmd.PersistentFlags().Float64("rate-limit-rps", defaults.GetFloat64("rate_limit.rps"), "Sustained requests per second per client")
	cmd.PersistentFlags().Int("rate-limit-burst", defaults.GetInt("rate_limit.burst"), "Burst size per client")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "auth.issuer", "auth-issuer")
	bindFlag(cmd, "auth.audience", "auth-audience")
	bindFlag(cmd, "auth.jwks_url", "auth-jwks-url")
	bindFlag(cmd, "directory.base_url", "directory-base-url")
	bindFlag(cmd, "directory.org", "directory-org")
	bindFlag(cmd, "rate_limit.enabled", "rate-limit-enabled")
	bindFlag(cmd, "rate_limit.rps", "rate-limit-rps")
	bindFlag(cmd, "rate_limit.burst", "rate-limit-burst")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	store, err := catalog.NewStore(catalog.StoreConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: catalog.NewUUIDProvider(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	verifier, err := auth.NewTokenVerifier(auth.TokenVerifierConfig{
		Issuer:   appConfig.AuthIssuer,
		Audience: appConfig.AuthAudience,
		JWKSURL:  appConfig.AuthJWKSURL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	guard, err := auth.NewGuard(auth.GuardConfig{
		Records: store,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	directoryClient, err := directory.NewClient(directory.ClientConfig{
		BaseURL: appConfig.DirectoryBaseURL,
		Org:     appConfig.DirectoryOrg,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	handler, err := server.NewHTTPHandler(server.Dependencies{
		TokenVerifier: verifier,
		Guard:         guard,
		Catalog:       store,
		Directory:     directoryClient,
		RateLimit: server.RateLimitConfig{
			Enabled: appConfig.RateLimitEnabled,
			RPS:     appConfig.RateLimitRPS,
			Burst:   appConfig.RateLimitBurst,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
