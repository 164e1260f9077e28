package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docsync/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docsync/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docsync/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docsync/internal/core/domain"
)

// DefaultPollInterval is how often the view asks for a new snapshot.
const DefaultPollInterval = 200 * time.Millisecond

const (
	barPadding  = 4
	maxBarWidth = 72
)

// App follows one batch until it reaches a final status.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports    *Ports
	ctx      context.Context
	batchID  string
	interval time.Duration

	styles *styles.Styles
	keys   *keymap.KeyMap
	bar    progress.Model

	snapshot   *domain.ProgressSnapshot
	cancelling bool
	hidden     bool
	err        error
	width      int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a progress view for batchID.
func NewApp(ports *Ports, batchID string) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}
	if batchID == "" {
		return nil, ErrMissingBatchID
	}

	s := styles.DefaultStyles()
	from, to := s.Gradient()

	return &App{
		ports:    ports,
		ctx:      context.Background(),
		batchID:  batchID,
		interval: DefaultPollInterval,
		styles:   s,
		keys:     keymap.DefaultKeyMap(),
		bar:      progress.New(progress.WithGradient(from, to), progress.WithWidth(40)),
	}, nil
}

// WithContext sets the context used for service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// WithPollInterval overrides DefaultPollInterval.
func (a *App) WithPollInterval(d time.Duration) *App {
	if d > 0 {
		a.interval = d
	}
	return a
}

// Init implements tea.Model. The first poll runs immediately.
func (a *App) Init() tea.Cmd {
	return a.poll()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetWidth(msg.Width)
		return a, nil

	case tea.KeyMsg:
		switch {
		case keymap.Matches(msg.String(), a.keys.Cancel):
			if a.cancelling {
				return a, nil
			}
			a.cancelling = true
			return a, a.cancel()
		case keymap.Matches(msg.String(), a.keys.Quit):
			a.hidden = true
			return a, tea.Quit
		}
		return a, nil

	case messages.Tick:
		return a, a.poll()

	case messages.ProgressPolled:
		if msg.Err != nil {
			a.err = msg.Err
			return a, tea.Quit
		}
		a.snapshot = msg.Snapshot
		if a.Done() {
			return a, tea.Quit
		}
		return a, a.tick()

	case messages.CancelCompleted:
		// A batch that finished before the cancel landed is not an error.
		if msg.Err != nil && !a.Done() {
			a.err = msg.Err
			return a, tea.Quit
		}
		return a, nil
	}

	return a, nil
}

func (a *App) poll() tea.Cmd {
	batch, ctx, id := a.ports.Batch, a.ctx, a.batchID
	return func() tea.Msg {
		snap, err := batch.GetBatchProgress(ctx, id)
		return messages.ProgressPolled{Snapshot: snap, Err: err}
	}
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return messages.Tick{}
	})
}

func (a *App) cancel() tea.Cmd {
	batch, ctx, id := a.ports.Batch, a.ctx, a.batchID
	return func() tea.Msg {
		return messages.CancelCompleted{Err: batch.CancelBatch(ctx, id)}
	}
}

// View implements tea.Model.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Batch " + a.batchID))
	if a.snapshot != nil {
		b.WriteString(a.styles.Muted.Render(" (" + string(a.snapshot.Kind) + ")"))
	}
	b.WriteString("\n\n")

	if a.snapshot == nil {
		b.WriteString(a.styles.Muted.Render("Waiting for progress..."))
		b.WriteString("\n")
		return b.String()
	}

	snap := a.snapshot
	b.WriteString(a.bar.ViewAs(snap.Percentage / 100))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  %s  %s\n",
		a.styles.Normal.Render(fmt.Sprintf("%d/%d processed", snap.Processed, snap.Total)),
		a.styles.Success.Render(fmt.Sprintf("%d ok", snap.Successful)),
		a.styles.Error.Render(fmt.Sprintf("%d failed", snap.Failed)),
	)
	b.WriteString(a.renderStatus(snap))
	b.WriteString("\n")

	if !a.Done() {
		help := make([]string, 0, 2)
		for _, k := range a.keys.ShortHelp() {
			help = append(help, k.Help().Key+" "+k.Help().Desc)
		}
		b.WriteString(a.styles.Help.Render(strings.Join(help, " • ")))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderStatus(snap *domain.ProgressSnapshot) string {
	switch snap.Status {
	case domain.BatchCompleted:
		return a.styles.Success.Render("completed")
	case domain.BatchCompletedWithErrors:
		return a.styles.Warning.Render("completed with errors")
	case domain.BatchFailed:
		msg := "failed"
		if snap.Error != "" {
			msg += ": " + snap.Error
		}
		return a.styles.Error.Render(msg)
	case domain.BatchCancelled:
		return a.styles.Warning.Render("cancelled")
	default:
		if a.cancelling {
			return a.styles.Warning.Render("cancelling...")
		}
		return a.styles.Muted.Render("processing")
	}
}

// Run starts the view and blocks until the batch finishes or the user hides it.
func (a *App) Run() error {
	p := tea.NewProgram(a)
	_, err := p.Run()
	return err
}

// Snapshot returns the last snapshot received, or nil.
func (a *App) Snapshot() *domain.ProgressSnapshot {
	return a.snapshot
}

// Done reports whether the batch has reached a final status.
func (a *App) Done() bool {
	return a.snapshot != nil && a.snapshot.Status.IsFinal()
}

// Hidden reports whether the user left the view before the batch finished.
func (a *App) Hidden() bool {
	return a.hidden
}

// Cancelling reports whether a cancel was requested.
func (a *App) Cancelling() bool {
	return a.cancelling
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// SetWidth sizes the bar to the terminal.
func (a *App) SetWidth(width int) {
	a.width = width
	w := width - barPadding
	if w > maxBarWidth {
		w = maxBarWidth
	}
	if w > 0 {
		a.bar.Width = w
	}
}
