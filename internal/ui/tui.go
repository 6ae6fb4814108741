// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and pumps queued level updates into it
package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/voicerec/recmeter/pkg/meter"
)

// VolumeChangeMsg is published when the user changes the volume
type VolumeChangeMsg struct {
	Volume float64 // 0..1
}

// QuitMsg is published when the user quits
type QuitMsg struct{}

// VolumeControl holds channels for volume control communication
type VolumeControl struct {
	Changes chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// NewVolumeControl creates a new volume control handler
func NewVolumeControl() *VolumeControl {
	return &VolumeControl{
		Changes: make(chan VolumeChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(volCtrl *VolumeControl) Model {
	return Model{
		volume:     100,
		volumeCtrl: volCtrl,
	}
}

// TUI runs the level display
type TUI struct {
	program *tea.Program
}

// New creates a TUI with the given initial status
func New(volCtrl *VolumeControl, status StatusMsg) *TUI {
	m := NewModel(volCtrl)
	m.applyStatus(status)
	return &TUI{
		program: tea.NewProgram(m, tea.WithAltScreen()),
	}
}

// Run shows the display until the user quits or ctx is cancelled.
// Updates are drained from queue in capture order.
func (t *TUI) Run(ctx context.Context, queue *meter.Queue) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for u := range queue.Updates(ctx) {
			t.program.Send(LevelsMsg(u))
		}
	}()

	go func() {
		<-ctx.Done()
		t.program.Quit()
	}()

	_, err := t.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// Status sends a status update to the TUI
func (t *TUI) Status(status StatusMsg) {
	t.program.Send(status)
}
