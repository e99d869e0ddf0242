package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/nickyhof/TableDB"
	"github.com/nickyhof/TableDB/config"
	"github.com/nickyhof/TableDB/ps"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "Listen address (overrides the config)")
	dataDir := flag.String("dataDir", "", "Archive directory (overrides the config; memory if both empty)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("TableDB Server v%s\n", Version)
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func openPersistence(cfg *config.Config, logger *zap.Logger) (*ps.Persistence, error) {
	if cfg.DataDir == "" {
		logger.Info("using memory archive")
		return ps.NewMemoryPersistence()
	}
	logger.Info("using file archive", zap.String("dir", cfg.DataDir))
	return ps.NewFilePersistence(cfg.DataDir, cfg.GitURLPtr())
}

func run(cfg *config.Config, logger *zap.Logger) error {
	persistence, err := openPersistence(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	instance := TableDB.Open(persistence, TableDB.WithLogger(logger))

	if cfg.Server.RestoreOnStart {
		report, rev, err := instance.RestoreLatest()
		switch {
		case errors.Is(err, ps.ErrNoRevisions):
			logger.Info("archive is empty, starting with an empty catalog")
		case err != nil:
			return fmt.Errorf("failed to restore: %w", err)
		default:
			logger.Info("restored archive",
				zap.String("revision", rev.Short()),
				zap.Int("tables", report.TablesCreated),
				zap.Int("failures", len(report.Failures)))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Backup.Enabled {
		opts := ps.BackupOptions{
			Dir:       cfg.Backup.Dir,
			Interval:  cfg.Backup.Interval,
			Keep:      cfg.Backup.Keep,
			Identity:  cfg.Identity,
			UploadURL: cfg.Backup.UploadURL,
			S3:        &cfg.S3,
		}
		if cfg.Backup.Archive {
			opts.Archive = persistence
		}
		scheduler := instance.NewBackupScheduler(opts)
		go scheduler.Run(ctx)
	}

	server := NewServer(instance, cfg.Identity,
		WithLogger(logger.Named("server")),
		WithAuth(&cfg.Auth))

	if cfg.Server.TLSCert != "" {
		err = server.StartTLS(cfg.Server.Address, cfg.Server.TLSCert, cfg.Server.TLSKey)
	} else {
		err = server.Start(cfg.Server.Address)
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   TableDB Server v%-19s  ║\n", Version)
	fmt.Println("║   Relational tables, git backups      ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on %s\n", server.Addr())
	fmt.Println("Send JSON requests (one per line), 'quit' to disconnect")
	fmt.Println()

	<-ctx.Done()

	logger.Info("shutting down")
	server.Stop()
	logger.Info("server stopped")
	return nil
}
