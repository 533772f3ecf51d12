package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opswatch/updateworker/config"
	"github.com/opswatch/updateworker/logger"
	"github.com/opswatch/updateworker/rrdstore"
	"github.com/opswatch/updateworker/state"
)

var (
	serveConfigFile string
	serveGroup      string
	servePort       int
	serveInterval   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve [host]",
	Short: "Poll one node on a fixed interval until interrupted",
	Long: `serve loops run against a single node on a fixed interval. It
exists for local testing of a worker outside the process pool a
dispatcher would otherwise manage; production deployments should use
"run" under a scheduler instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runServeCmd,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "path to a TOML configuration file")
	serveCmd.Flags().StringVar(&serveGroup, "group", "", "group name this host belongs to")
	serveCmd.Flags().IntVar(&servePort, "port", 4949, "agent port to connect to")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 5*time.Minute, "time between polling cycles")
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	hostName := args[0]

	cfg, err := loadConfig(serveConfigFile)
	if err != nil {
		return err
	}

	statePath := fmt.Sprintf("%s/%s.state.yaml", cfg.DBDir, hostName)
	st, err := state.Load(statePath)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	host := config.HostDescriptor{GroupName: serveGroup, HostName: hostName, Port: servePort}
	w := newWorker(cfg)

	watcher := rrdstore.WatchDir(cfg.DBDir, st.InvalidateFile)
	defer watcher.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(serveInterval)
	defer ticker.Stop()

	for {
		result, err := w.Run(ctx, host, cfg, st)
		if err != nil {
			logger.Errorw("poll cycle failed", logger.FieldHost, hostName, logger.FieldError, err.Error())
		} else {
			logger.Infow("poll cycle complete", logger.FieldHost, hostName, logger.FieldDurationMS, int64(result.ElapsedSeconds*1000))
		}

		if err := state.Save(statePath, st); err != nil {
			logger.Errorw("failed to persist state", logger.FieldHost, hostName, logger.FieldError, err.Error())
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
