// serve.go implements the "compass serve" command, which exposes sessions
// over the JSON HTTP API.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/berth-dev/compass/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions over HTTP",
	Long: `Start the compass HTTP server. Every session operation is available as a
POST endpoint under /sessions/, taking and returning JSON.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddrFlag      string
	serveLogLevelFlag  string
	serveLogFormatFlag string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "", "Listen address (default: server.addr)")
	serveCmd.Flags().StringVar(&serveLogLevelFlag, "log-level", "info", "Request log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveLogFormatFlag, "log-format", "text", "Request log format (text, json)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	logger, err := newServerLogger(serveLogLevelFlag, serveLogFormatFlag)
	if err != nil {
		return err
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	addr := a.cfg.Server.Addr
	if serveAddrFlag != "" {
		addr = serveAddrFlag
	}

	srv := server.New(a.ctrl, logger)
	if err := srv.Listen(addr); err != nil {
		return err
	}
	logger.WithField("addr", srv.Addr()).Info("compass server listening")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func newServerLogger(level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
	return logger, nil
}
