package cli

import (
	"context"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/SLAM-BOX/episodic-lifelong-learning/internal/trainer"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// epochStartMsg announces a new epoch and its total step count.
type epochStartMsg struct {
	epoch      int
	totalSteps int
}

// stepMsg carries one completed training step.
type stepMsg struct {
	event trainer.StepEvent
}

// epochEndMsg carries the finished epoch's stats.
type epochEndMsg struct {
	epoch int
	stats trainer.Stats
}

// trainDoneMsg ends the display when the training goroutine returns.
type trainDoneMsg struct {
	err error
}

// epochLoss pairs an epoch number with its mean loss for the summary.
type epochLoss struct {
	epoch int
	mean  float64
}

// trainModel is the bubbletea model for the training display.
type trainModel struct {
	cancel      context.CancelFunc
	order       int
	totalEpochs int

	epoch      int
	totalSteps int
	step       int
	loss       float64
	memorySize int

	epochLosses []epochLoss
	replaySteps int

	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

// newTrainModel creates a training display for the given run shape.
func newTrainModel(order, totalEpochs int, cancel context.CancelFunc) trainModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return trainModel{
		cancel:      cancel,
		order:       order,
		totalEpochs: totalEpochs,
		progress:    prog,
		theme:       defaultTheme,
	}
}

// Init returns the initial command.
func (m trainModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m trainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Stop after the current step; the training goroutine posts
			// trainDoneMsg once it has wound down.
			m.quitting = true
			m.cancel()
			return m, nil
		}

	case epochStartMsg:
		m.epoch = msg.epoch
		m.totalSteps = msg.totalSteps
		m.step = 0
		return m, nil

	case stepMsg:
		m.step = msg.event.Step
		m.loss = msg.event.Loss
		m.memorySize = msg.event.MemorySize
		if msg.event.Replay {
			m.replaySteps++
		}
		return m, nil

	case epochEndMsg:
		m.epochLosses = append(m.epochLosses, epochLoss{epoch: msg.epoch, mean: msg.stats.MeanLoss()})
		return m, nil

	case trainDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the training display.
func (m trainModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m trainModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if m.epoch == 0 {
		return "Loading task stream...\n"
	}

	var pct float64
	if m.totalSteps > 0 {
		pct = float64(m.step) / float64(m.totalSteps)
	}

	status := m.theme.statusStyle().Render(
		fmt.Sprintf("[order %d  epoch %d/%d]", m.order, m.epoch, m.totalEpochs))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d steps", m.step, m.totalSteps)

	detail := fmt.Sprintf("loss %.4f  memory %d  replays %d", m.loss, m.memorySize, m.replaySteps)

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop after the current step")
	if m.quitting {
		hint = m.theme.hintStyle().Render("Stopping...")
	}

	return fmt.Sprintf("%s %s %s\n%s\n%s\n", status, progressBar, counts, detail, hint)
}

// finalView renders the completion message.
func (m trainModel) finalView() string {
	if m.err != nil {
		if m.quitting {
			return m.theme.hintStyle().Render(
				fmt.Sprintf("\nTraining stopped after %d epochs. Continue with --resume.\n", len(m.epochLosses)))
		}
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Training failed: %s\n", m.err))
	}

	var output strings.Builder
	output.WriteString(m.theme.completedStyle().Render("✓ Training complete") + "\n\n")
	for _, el := range m.epochLosses {
		output.WriteString(fmt.Sprintf("  Epoch %d mean loss:  %.4f\n", el.epoch, el.mean))
	}
	output.WriteString(fmt.Sprintf("  Replay steps:       %d\n", m.replaySteps))
	output.WriteString(fmt.Sprintf("  Final memory size:  %d\n", m.memorySize))
	return output.String()
}

// uiSink forwards training progress into the bubbletea program.
type uiSink struct {
	program *tea.Program
}

func (s *uiSink) epochStarted(epoch, totalEpochs, totalSteps int) {
	s.program.Send(epochStartMsg{epoch: epoch, totalSteps: totalSteps})
}

func (s *uiSink) step(e trainer.StepEvent) {
	s.program.Send(stepMsg{event: e})
}

func (s *uiSink) epochFinished(epoch int, stats trainer.Stats) {
	s.program.Send(epochEndMsg{epoch: epoch, stats: stats})
}

// runTrainWithUI executes the run with the interactive display. The
// training loop runs on its own goroutine and feeds the UI; Ctrl+C
// cancels the loop's context for a clean stop.
func runTrainWithUI(ctx context.Context, run *trainingRun) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newTrainModel(run.order, run.epochs, cancel))

	var g errgroup.Group
	g.Go(func() error {
		err := run.execute(ctx, &uiSink{program: p})
		p.Send(trainDoneMsg{err: err})
		return err
	})

	if _, err := p.Run(); err != nil {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("progress UI error: %w", err)
	}
	return g.Wait()
}
