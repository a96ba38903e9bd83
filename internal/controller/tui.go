package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A80")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorSuccess),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1),
}

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the progress view in the background.
func (t *TUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.program != nil {
		return nil
	}

	t.program = tea.NewProgram(newProgressModel(),
		tea.WithOutput(t.output),
		tea.WithInput(nil),
		tea.WithContext(ctx),
	)
	t.done = make(chan struct{})

	go func(program *tea.Program, done chan struct{}) {
		defer close(done)

		_, _ = program.Run()
	}(t.program, t.done)

	return nil
}

// Close stops the progress view and waits for its final frame.
func (t *TUI) Close(_ context.Context) {
	t.mu.Lock()
	program, done := t.program, t.done
	t.program, t.done = nil, nil
	t.mu.Unlock()

	if program == nil {
		return
	}

	program.Send(quitMsg{})
	<-done
}

// StageStarted shows a spinner for the stage.
func (t *TUI) StageStarted(_ context.Context, stage Stage) {
	t.send(stageStartedMsg{stage: stage})
}

// StageFinished replaces the stage spinner with its outcome.
func (t *TUI) StageFinished(_ context.Context, stage Stage, detail string) {
	t.send(stageFinishedMsg{stage: stage, detail: detail})
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.program != nil {
		t.program.Send(msg)
	}
}

// DisplaySummary closes the progress view and prints the styled summary.
func (t *TUI) DisplaySummary(ctx context.Context, summary Summary) error {
	t.Close(ctx)

	_, err := fmt.Fprint(t.output, renderStyledSummary(summary, terminalWidth(t.output)))

	return err
}

// DisplayHooksInstalled lists the installed hook scripts.
func (t *TUI) DisplayHooksInstalled(_ context.Context, hooks []string) error {
	var b strings.Builder

	for _, hook := range hooks {
		b.WriteString(styles.Success.Render("✓") + " installed " + hook + "\n")
	}

	_, err := fmt.Fprint(t.output, b.String())

	return err
}

// terminalWidth is the column count of the terminal behind w, or 0 when unknown.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}

	return width
}

func renderStyledSummary(summary Summary, width int) string {
	box := styles.Box
	if width > 0 {
		box = box.MaxWidth(width)
	}

	var b strings.Builder

	b.WriteString(styles.Title.Render("gapfill summary") + "\n")
	b.WriteString(renderGapTable(summary))

	line := summaryLine(summary)

	switch {
	case summary.DryRun || summary.Validation.Skipped:
		line = styles.Warning.Render(line)
	case summary.Validation.Success:
		line = styles.Success.Render(line)
	default:
		line = styles.Error.Render(line)
	}

	b.WriteString(box.Render(line) + "\n")

	if !summary.DryRun && !summary.Validation.Success && summary.Validation.Output != "" {
		b.WriteString(styles.Muted.Render(strings.TrimRight(summary.Validation.Output, "\n")) + "\n")
	}

	return b.String()
}

type (
	stageStartedMsg struct {
		stage Stage
	}

	stageFinishedMsg struct {
		stage  Stage
		detail string
	}

	quitMsg struct{}
)

type stageState struct {
	stage  Stage
	detail string
	done   bool
}

// progressModel is the Bubble Tea model listing stages as they run.
type progressModel struct {
	spinner  spinner.Model
	stages   []stageState
	quitting bool
}

func newProgressModel() progressModel {
	return progressModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(styles.Title),
		),
	}
}

func (pm progressModel) Init() tea.Cmd {
	return pm.spinner.Tick
}

func (pm progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stageStartedMsg:
		if pm.index(msg.stage) < 0 {
			pm.stages = append(pm.stages, stageState{stage: msg.stage})
		}

		return pm, nil

	case stageFinishedMsg:
		i := pm.index(msg.stage)
		if i < 0 {
			pm.stages = append(pm.stages, stageState{stage: msg.stage})
			i = len(pm.stages) - 1
		}

		pm.stages[i].done = true
		pm.stages[i].detail = msg.detail

		return pm, nil

	case quitMsg:
		pm.quitting = true
		return pm, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			pm.quitting = true
			return pm, tea.Quit
		}

		return pm, nil

	case spinner.TickMsg:
		var cmd tea.Cmd

		pm.spinner, cmd = pm.spinner.Update(msg)

		return pm, cmd
	}

	return pm, nil
}

func (pm progressModel) index(stage Stage) int {
	for i, state := range pm.stages {
		if state.stage == stage {
			return i
		}
	}

	return -1
}

func (pm progressModel) View() string {
	var b strings.Builder

	for _, state := range pm.stages {
		if state.done {
			fmt.Fprintf(&b, "%s %s %s\n", styles.Success.Render("✓"), state.stage, styles.Muted.Render(state.detail))
			continue
		}

		fmt.Fprintf(&b, "%s %s\n", pm.spinner.View(), state.stage)
	}

	return b.String()
}
