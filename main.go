package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/content"
	"github.com/Zachkp/portfolio/internal/forms"
	"github.com/Zachkp/portfolio/internal/logging"
	"github.com/Zachkp/portfolio/internal/relay"
	"github.com/Zachkp/portfolio/internal/server"
	"github.com/Zachkp/portfolio/internal/session"
	"github.com/Zachkp/portfolio/internal/visits"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sweepEvery   = time.Minute
	cleanupEvery = 24 * time.Hour
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "portfolio",
		Short:         "Personal portfolio site with relayed contact and project inquiry forms",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "load variables from this .env file instead of .env / .env.$ENV")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve the site (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, envFile)
		},
	})
	root.AddCommand(newSendCmd(&envFile))
	return root
}

func loadConfig(envFile string) (*config.Config, error) {
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

func formOptions(cfg *config.Config) (contact, inquiry []forms.Option) {
	return []forms.Option{forms.WithResetAfter(cfg.ContactResetAfter)},
		[]forms.Option{forms.WithResetAfter(cfg.InquiryResetAfter)}
}

func runServe(cmd *cobra.Command, envFile string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	resume, err := content.Load()
	if err != nil {
		return err
	}

	contactOpts, inquiryOpts := formOptions(cfg)
	sessions := session.NewStore(cfg.SessionTTL, session.NewFactory(
		relay.New(cfg.RelayTimeout), cfg.ContactEndpoint, cfg.InquiryEndpoint, contactOpts, inquiryOpts))
	defer sessions.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var vs *visits.Store
	if cfg.DatabasePath != "" {
		vs, err = visits.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer vs.Close()
		logger.Info("privacy: visitor tracking enabled with hashed IP addresses", zap.String("db", cfg.DatabasePath))
	}
	if cfg.AdminToken != "" && vs != nil {
		logger.Info("admin stats available at /admin/api/stats")
	}

	srv, err := server.New(server.Deps{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		Visits:   vs,
		Resume:   resume,
	})
	if err != nil {
		return err
	}

	logger.Info("starting portfolio",
		zap.String("env", cfg.Environment),
		zap.String("contact_endpoint", cfg.ContactEndpoint),
		zap.String("inquiry_endpoint", cfg.InquiryEndpoint))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, ":"+cfg.Port) })
	g.Go(func() error { return srv.RunJanitor(gctx, sweepEvery, cleanupEvery) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
