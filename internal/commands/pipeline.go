// ABOUTME: Capture pipeline assembly shared by the meter and serve commands
// ABOUTME: Opens the configured source and wires session, probe, queue and monitor
package commands

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/voicerec/recmeter/internal/config"
	"github.com/voicerec/recmeter/pkg/audio/output"
	"github.com/voicerec/recmeter/pkg/capture"
	"github.com/voicerec/recmeter/pkg/meter"
)

// captureFlags are the capture overrides accepted by meter and serve
type captureFlags struct {
	source       string
	backend      string
	file         string
	format       string
	rate         int
	channels     int
	bufferFrames int
	loop         bool
	monitor      bool
	volume       float64
	queue        int
}

func (f *captureFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.source, "source", "", "capture source: tone, mic or file")
	fl.StringVar(&f.backend, "backend", "", "microphone backend: malgo or portaudio")
	fl.StringVar(&f.file, "file", "", "MP3 or FLAC file to meter (implies --source file)")
	fl.StringVar(&f.format, "format", "", "sample format for tone and mic, e.g. s16le, u8, f32le")
	fl.IntVar(&f.rate, "rate", 0, "sample rate in Hz")
	fl.IntVar(&f.channels, "channels", 0, "channel count")
	fl.IntVar(&f.bufferFrames, "buffer-frames", 0, "frames per captured buffer")
	fl.BoolVar(&f.loop, "loop", false, "restart files at end of stream")
	fl.BoolVar(&f.monitor, "monitor", false, "play captured audio while metering")
	fl.Float64Var(&f.volume, "volume", 0, "initial volume applied to levels (0-1)")
	fl.IntVar(&f.queue, "queue", 0, "level updates buffered for the display")
}

// apply overrides cfg with the flags the user set and revalidates
func (f *captureFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	fl := cmd.Flags()
	c := &cfg.Capture

	if fl.Changed("file") {
		c.File = f.file
		c.Source = "file"
	}
	if fl.Changed("source") {
		c.Source = f.source
	}
	if fl.Changed("backend") {
		c.Backend = f.backend
	}
	if fl.Changed("format") {
		c.Format = f.format
	}
	if fl.Changed("rate") {
		c.SampleRate = f.rate
	}
	if fl.Changed("channels") {
		c.Channels = f.channels
	}
	if fl.Changed("buffer-frames") {
		c.BufferFrames = f.bufferFrames
	}
	if fl.Changed("loop") {
		c.Loop = f.loop
	}
	if fl.Changed("monitor") {
		c.Monitor = f.monitor
	}
	if fl.Changed("volume") {
		cfg.Meter.Volume = f.volume
	}
	if fl.Changed("queue") {
		cfg.Meter.QueueCapacity = f.queue
	}

	return cfg.Validate()
}

// pipeline is a running capture chain
type pipeline struct {
	source  capture.Source
	session *capture.Session
	queue   *meter.Queue
	monitor output.Output
}

// newPipeline opens the configured source and wires it to a new queue.
// observer may be nil.
func newPipeline(cfg *config.Config, observer meter.Observer) (*pipeline, error) {
	source, err := openSource(cfg.Capture)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		source: source,
		queue:  meter.NewQueue(cfg.Meter.QueueCapacity),
	}

	sessionConfig := capture.SessionConfig{
		Source: source,
		Meter: meter.ProbeConfig{
			Queue:    p.queue,
			Observer: observer,
		},
		// Devices deliver buffers at their own pace
		Realtime: cfg.Capture.Source != "mic",
		Loop:     cfg.Capture.Loop,
		Volume:   cfg.Meter.Volume,
	}
	if cfg.Capture.Monitor {
		p.monitor = output.NewOto()
		if err := p.monitor.Open(source.Format()); err != nil {
			log.Printf("Monitor disabled: %v", err)
			p.monitor = nil
		} else {
			sessionConfig.Monitor = p.monitor
		}
	}

	session, err := capture.NewSession(sessionConfig)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if cfg.Meter.Volume == 0 {
		// The session treats a zero initial volume as unset
		session.SetVolume(0)
	}
	p.session = session

	log.Printf("Capturing from %s: %s", source.Name(), source.Format())
	return p, nil
}

// Run captures until ctx is cancelled or the source ends, then closes the
// queue so consumers drain and stop.
func (p *pipeline) Run(ctx context.Context) error {
	defer p.queue.Close()
	return p.session.Run(ctx)
}

// Close releases the source and monitor
func (p *pipeline) Close() {
	if p.monitor != nil {
		if err := p.monitor.Close(); err != nil {
			log.Printf("Error closing monitor: %v", err)
		}
	}
	if err := p.source.Close(); err != nil {
		log.Printf("Error closing source: %v", err)
	}
}

// openSource creates the capture source selected by c
func openSource(c config.CaptureConfig) (capture.Source, error) {
	switch c.Source {
	case "file":
		return capture.OpenFile(c.File, c.BufferFrames)

	case "tone":
		format, err := c.AudioFormat()
		if err != nil {
			return nil, err
		}
		return capture.NewToneSource(capture.ToneConfig{
			Format:       format,
			Frequency:    c.ToneFrequency,
			Amplitude:    c.ToneAmplitude,
			BufferFrames: c.BufferFrames,
		})

	case "mic":
		format, err := c.AudioFormat()
		if err != nil {
			return nil, err
		}
		if c.Backend == "portaudio" {
			return capture.NewPortAudioSource(format, c.BufferFrames)
		}
		return capture.NewMalgoSource(format, c.BufferFrames)
	}

	return nil, fmt.Errorf("unknown source %q", c.Source)
}
