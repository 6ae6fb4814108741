// ABOUTME: meter command showing live levels in the terminal
// ABOUTME: Runs a capture pipeline and feeds its queue into the waveform TUI
package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/voicerec/recmeter/internal/ui"
	"github.com/voicerec/recmeter/pkg/meter"
)

// statusInterval is how often queue statistics are pushed to the TUI
const statusInterval = 500 * time.Millisecond

var meterFlags captureFlags

var meterCmd = &cobra.Command{
	Use:   "meter",
	Short: "Show live channel levels in the terminal",
	Long: `Capture audio and show a scrolling per-channel level waveform.

Keys:
  up/down   change volume
  c         clear history
  d         toggle debug line
  q         quit

Examples:
  recmeter meter
  recmeter meter --source mic --format f32le --channels 1
  recmeter meter --file take1.mp3 --loop --monitor`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		if err := meterFlags.apply(cmd, cfg); err != nil {
			return err
		}

		logCloser, err := setupLogging(cfg.Logging, true)
		if err != nil {
			return err
		}
		defer logCloser.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runMeter(ctx, cmd, cfg.Logging.File)
	},
}

func init() {
	meterFlags.register(meterCmd)
}

func runMeter(ctx context.Context, cmd *cobra.Command, logPath string) error {
	cfg := getConfig()

	p, err := newPipeline(cfg, nil)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	volCtrl := ui.NewVolumeControl()
	format := p.source.Format()
	volume := p.session.Volume()
	tui := ui.New(volCtrl, ui.StatusMsg{
		Title:  p.source.Name(),
		Format: &format,
		Volume: &volume,
	})

	captureErr := make(chan error, 1)
	go func() {
		captureErr <- p.Run(ctx)
	}()

	go controlLoop(ctx, cancel, volCtrl, p.session.SetVolume)
	go statusLoop(ctx, tui, p.queue)

	if err := tui.Run(ctx, p.queue); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	cancel()

	if err := <-captureErr; err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Captured %d buffers (%d level updates dropped). Log: %s\n",
		p.session.Buffers(), p.queue.Dropped(), logPath)
	return nil
}

// controlLoop applies TUI volume changes until the user quits
func controlLoop(ctx context.Context, cancel context.CancelFunc, volCtrl *ui.VolumeControl, setVolume func(float64)) {
	for {
		select {
		case change := <-volCtrl.Changes:
			log.Printf("Volume changed to %.2f", change.Volume)
			setVolume(change.Volume)
		case <-volCtrl.Quit:
			log.Printf("Quit requested")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statusLoop reports queue backpressure to the TUI
func statusLoop(ctx context.Context, tui *ui.TUI, queue *meter.Queue) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tui.Status(ui.StatusMsg{Dropped: queue.Dropped(), QueueDepth: queue.Len()})
		case <-ctx.Done():
			return
		}
	}
}
