// ABOUTME: watch command showing a remote relay's levels
// ABOUTME: Finds a relay via mDNS or --server and feeds its stream into the TUI
package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/voicerec/recmeter/internal/discovery"
	"github.com/voicerec/recmeter/internal/ui"
	"github.com/voicerec/recmeter/internal/version"
	"github.com/voicerec/recmeter/pkg/meter"
	"github.com/voicerec/recmeter/pkg/protocol"
)

var (
	watchServer  string
	watchName    string
	watchTimeout time.Duration
	watchQueue   int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the levels of a remote relay",
	Long: `Connect to a recmeter relay and show its levels as a waveform.

Without --server the first relay answering on mDNS is used. Volume keys
are forwarded to the relay and change the levels for every display.

Examples:
  recmeter watch
  recmeter watch --server studio.local:8928`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		logCloser, err := setupLogging(cfg.Logging, true)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		capacity := cfg.Meter.QueueCapacity
		if cmd.Flags().Changed("queue") {
			capacity = watchQueue
		}
		return runWatch(ctx, capacity)
	},
}

func init() {
	fl := watchCmd.Flags()
	fl.StringVar(&watchServer, "server", "", "relay address host:port (skip mDNS)")
	fl.StringVar(&watchName, "name", "", "display name (default hostname-recmeter-watch)")
	fl.DurationVar(&watchTimeout, "discovery-timeout", 10*time.Second, "how long to browse for a relay")
	fl.IntVar(&watchQueue, "queue", 0, "level updates buffered for the display")
}

func runWatch(ctx context.Context, capacity int) error {
	addr := watchServer
	if addr == "" {
		fmt.Println("Searching for relays...")
		findCtx, cancel := context.WithTimeout(ctx, watchTimeout)
		server, err := discovery.FindServer(findCtx)
		cancel()
		if err != nil {
			return err
		}
		addr = server.Addr()
	}

	name := watchName
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		name = fmt.Sprintf("%s-recmeter-watch", hostname)
	}

	client := protocol.NewClient(protocol.Config{
		ServerAddr: addr,
		ClientID:   uuid.New().String(),
		Name:       name,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
		Queue: meter.NewQueue(capacity),
	})

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := client.Connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer client.Close()

	ctx, cancel = context.WithCancel(ctx)
	defer cancel()

	hello := client.Server()
	connected := true
	volCtrl := ui.NewVolumeControl()
	tui := ui.New(volCtrl, ui.StatusMsg{
		Title:     fmt.Sprintf("%s: %s", hello.Name, hello.Source),
		Connected: &connected,
	})

	go controlLoop(ctx, cancel, volCtrl, func(v float64) {
		if err := client.SendVolume(v); err != nil {
			log.Printf("Failed to send volume: %v", err)
		}
	})
	go statusLoop(ctx, tui, client.Queue())
	go func() {
		for {
			select {
			case f := <-client.Formats:
				format := f.AudioFormat()
				tui.Status(ui.StatusMsg{Format: &format})
			case <-client.Done():
				disconnected := false
				tui.Status(ui.StatusMsg{Connected: &disconnected})
				log.Printf("Relay connection ended: %s", client.EndReason())
				client.Queue().Close()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := tui.Run(ctx, client.Queue()); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	if client.IsConnected() {
		client.SendGoodbye("user_quit")
	}
	return nil
}
