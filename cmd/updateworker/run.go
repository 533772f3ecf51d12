package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/opswatch/updateworker/carbon"
	"github.com/opswatch/updateworker/config"
	"github.com/opswatch/updateworker/rrdstore"
	"github.com/opswatch/updateworker/session"
	"github.com/opswatch/updateworker/state"
	"github.com/opswatch/updateworker/worker"
)

var (
	runConfigFile string
	runStateFile  string
	runGroup      string
	runPort       int
)

var runCmd = &cobra.Command{
	Use:   "run [host]",
	Short: "Poll one node a single time and exit",
	Long: `run performs exactly one polling cycle against a single node
and persists the resulting state. It is meant to be invoked by a
dispatcher or cron, one process per node per cycle.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunCmd,
}

func init() {
	runCmd.Flags().StringVar(&runConfigFile, "config", "", "path to a TOML configuration file (overrides environment-based loading)")
	runCmd.Flags().StringVar(&runStateFile, "state", "", "path to this node's persisted state file (defaults to <dbdir>/<host>.state.yaml)")
	runCmd.Flags().StringVar(&runGroup, "group", "", "group name this host belongs to, used for address resolution and file paths")
	runCmd.Flags().IntVar(&runPort, "port", 4949, "agent port to connect to")
}

func runRunCmd(cmd *cobra.Command, args []string) error {
	hostName := args[0]

	cfg, err := loadConfig(runConfigFile)
	if err != nil {
		return err
	}

	statePath := runStateFile
	if statePath == "" {
		statePath = fmt.Sprintf("%s/%s.state.yaml", cfg.DBDir, hostName)
	}
	st, err := state.Load(statePath)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	host := config.HostDescriptor{GroupName: runGroup, HostName: hostName, Port: runPort}

	w := newWorker(cfg)
	result, err := w.Run(cmd.Context(), host, cfg, st)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if err := state.Save(statePath, st); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}

	fmt.Printf("polled %s in %.2fs\n", hostName, result.ElapsedSeconds)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// newWorker wires a Worker's real, production Dependencies: a plain
// TCP dialer, DNS-backed address resolution, an RRD-backed store, and
// an optional Carbon sink.
func newWorker(cfg *config.Config) *worker.Worker {
	engine := rrdstore.NewEngine()
	store := rrdstore.New(engine, cfg.RRDCachedSocket != "")

	deps := worker.Dependencies{
		Dial: func(ctx context.Context, address string, port int) (session.Transport, error) {
			d := net.Dialer{Timeout: 10 * time.Second}
			conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", address, port))
			if err != nil {
				return nil, err
			}
			return tcpTransport{conn}, nil
		},
		Store:          store,
		SessionTimeout: time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		CurrentVersion: "1.0",
	}

	if cfg.CarbonServer != "" {
		deps.DialCarbon = func(host config.HostDescriptor, cfg *config.Config) *carbon.Sink {
			addr := fmt.Sprintf("%s:%d", cfg.CarbonServer, cfg.CarbonPort)
			return carbon.Dial(addr, cfg.CarbonPrefix, host.HostPath(), 5*time.Second)
		}
	}

	return worker.New(deps)
}

// tcpTransport adapts a net.Conn to session.Transport. A plain TCP
// connection has no helper process to reap.
type tcpTransport struct {
	net.Conn
}

func (t tcpTransport) HelperPID() (int, bool) { return 0, false }
