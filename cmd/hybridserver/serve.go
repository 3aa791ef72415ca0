package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"hybridserver/internal/config"
	"hybridserver/internal/document"
	"hybridserver/internal/router"
	"hybridserver/internal/server"
	"hybridserver/internal/slogutil"
	"hybridserver/internal/storage"
	"hybridserver/internal/version"
)

var (
	serveConfigPath string
	servePort       int
	serveNumClients int
	serveInitDB     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [config-file]",
	Short: "Start the document server",
	Long: `Start the Hybrid Server on a raw TCP port.

Configuration is read from the given file (properties, json, yaml or toml),
then HYBRID_* environment variables, then flags.

Examples:
  hybridserver serve
  hybridserver serve config.properties
  hybridserver serve --port 9000 --num-clients 10
  hybridserver serve --config server.yaml --init-db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to configuration file")
	serveCmd.Flags().IntVar(&servePort, "port", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().IntVar(&serveNumClients, "num-clients", config.DefaultNumClients, "Number of requests served concurrently")
	serveCmd.Flags().BoolVar(&serveInitDB, "init-db", false, "Create the document tables before serving (relational backend only)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd, args)
	if err != nil {
		return err
	}

	factory := slogutil.NewLoggerFactory(cfg.Logging, cliLevel())
	defer func() { _ = factory.Close() }()
	logger := factory.ServerLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close storage", "error", err.Error())
		}
	}()

	if serveInitDB {
		sqlStore, ok := store.(*storage.SQLStore)
		if !ok {
			return errors.New("--init-db requires db.url to be configured")
		}
		if err := sqlStore.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		logger.Info("Database schema ready", "driver", sqlStore.Driver())
	}

	srv := server.New(cfg, router.New(store, logger), logger)
	if err := srv.Start(); err != nil {
		return err
	}

	if err := printBanner(ctx, cmd.OutOrStdout(), srv.Addr(), store); err != nil {
		logger.Warn("Failed to list documents", "error", err.Error())
	}

	<-ctx.Done()
	logger.Info("Received shutdown signal")
	return srv.Stop()
}

// loadServeConfig resolves the configuration file from --config or the
// positional argument and applies flags that were set explicitly.
func loadServeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path := serveConfigPath
	if path == "" && len(args) > 0 {
		path = args[0]
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if cmd.Flags().Changed("num-clients") {
		cfg.NumClients = serveNumClients
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printBanner writes the reachable URLs and the ids already stored per type.
func printBanner(ctx context.Context, w io.Writer, addr net.Addr, store storage.Store) error {
	base := "http://localhost"
	if tcp, ok := addr.(*net.TCPAddr); ok {
		base += ":" + strconv.Itoa(tcp.Port)
	}

	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint("Hybrid Server"), version.Info())
	fmt.Fprintf(w, "  Welcome page: %s\n", color.CyanString(base+"/"))

	for _, t := range document.All {
		docs, err := store.Gateway(t).List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-17s %s (%d)\n", t.Title()+":", color.CyanString(base+"/"+t.Param()), len(docs))

		ids := make([]string, 0, len(docs))
		for id := range docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "    %s\n", color.GreenString("%s/%s?%s=%s", base, t.Param(), document.IDParam, id))
		}
	}

	fmt.Fprintln(w, color.YellowString("Press Ctrl+C to stop"))
	return nil
}
