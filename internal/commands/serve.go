// ABOUTME: serve command relaying levels to remote displays
// ABOUTME: Runs a capture pipeline behind the WebSocket relay with mDNS and metrics
package commands

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/voicerec/recmeter/internal/config"
	"github.com/voicerec/recmeter/internal/discovery"
	"github.com/voicerec/recmeter/internal/metrics"
	"github.com/voicerec/recmeter/internal/relay"
)

var (
	serveFlags captureFlags

	servePort      int
	serveAddress   string
	serveName      string
	serveNoMDNS    bool
	serveNoMetrics bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Relay live levels to remote displays over WebSocket",
	Long: `Capture audio and broadcast per-channel levels to every connected display.

Displays connect to ws://host:port/levels. The relay is advertised via mDNS
as _recmeter._tcp unless --no-mdns is given, and Prometheus metrics are
served at /metrics unless --no-metrics is given.

Examples:
  recmeter serve --source mic
  recmeter serve --file set.flac --loop --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		applyRelayFlags(cmd, &cfg.Relay)
		if err := serveFlags.apply(cmd, cfg); err != nil {
			return err
		}

		logCloser, err := setupLogging(cfg.Logging, false)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runServe(ctx, cfg)
	},
}

func init() {
	serveFlags.register(serveCmd)

	fl := serveCmd.Flags()
	fl.IntVar(&servePort, "port", 0, "WebSocket relay port (default 8928)")
	fl.StringVar(&serveAddress, "address", "", "listen address (default 0.0.0.0)")
	fl.StringVar(&serveName, "name", "", "relay name (default hostname-recmeter)")
	fl.BoolVar(&serveNoMDNS, "no-mdns", false, "disable mDNS advertisement")
	fl.BoolVar(&serveNoMetrics, "no-metrics", false, "disable the /metrics endpoint")
}

func applyRelayFlags(cmd *cobra.Command, r *config.RelayConfig) {
	fl := cmd.Flags()
	if fl.Changed("port") {
		r.Port = servePort
	}
	if fl.Changed("address") {
		r.Address = serveAddress
	}
	if fl.Changed("name") {
		r.Name = serveName
	}
	if serveNoMDNS {
		r.Discovery = false
	}
	if serveNoMetrics {
		r.Metrics = false
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log.Printf("Starting relay: %s on port %d", cfg.Relay.Name, cfg.Relay.Port)
	log.Printf("Logging to: %s", cfg.Logging.File)
	log.Printf("Press Ctrl-C to stop")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	p, err := newPipeline(cfg, m)
	if err != nil {
		return err
	}
	defer p.Close()

	relayConfig := relay.Config{
		Port:    cfg.Relay.Port,
		Address: cfg.Relay.Address,
		Name:    cfg.Relay.Name,
		Debug:   cfg.Logging.Debug,
		Source:  p.source.Name(),
		Format:  p.source.Format(),
		Volume:  p.session,
		Metrics: m,
	}
	if cfg.Relay.Metrics {
		relayConfig.Gatherer = reg
	}
	srv := relay.New(relayConfig)

	if cfg.Relay.Discovery {
		mgr := discovery.NewManager(discovery.Config{
			ServiceName: cfg.Relay.Name,
			Port:        cfg.Relay.Port,
			Source:      p.source.Name(),
		})
		if err := mgr.Advertise(); err != nil {
			// Displays can still connect with --server
			log.Printf("mDNS advertisement failed: %v", err)
		}
		defer mgr.Stop()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	captureErr := make(chan error, 1)
	go func() {
		captureErr <- p.Run(ctx)
	}()

	if err := srv.Run(ctx, p.queue); err != nil {
		return err
	}
	cancel()

	if err := <-captureErr; err != nil {
		return err
	}
	log.Printf("Relayed %d buffers, %d level updates dropped", p.session.Buffers(), p.queue.Dropped())
	return nil
}
