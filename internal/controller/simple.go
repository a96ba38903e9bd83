package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	m "gapfill.dev/pkg/gapfill/internal/model"
)

// SimpleUI implements UI using plain lines on the command output. It is used
// for git hooks and non-interactive shells.
type SimpleUI struct {
	cmd *cobra.Command
	mu  sync.Mutex
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// StageStarted prints the stage being entered.
func (s *SimpleUI) StageStarted(ctx context.Context, stage Stage) {
	if ctx.Err() != nil {
		return
	}

	s.printf("==> %s\n", stage)
}

// StageFinished prints the outcome of a stage.
func (s *SimpleUI) StageFinished(ctx context.Context, stage Stage, detail string) {
	if ctx.Err() != nil {
		return
	}

	s.printf("    %s: %s\n", stage, detail)
}

// DisplaySummary prints the gap table and the validation outcome.
func (s *SimpleUI) DisplaySummary(_ context.Context, summary Summary) error {
	s.printf("\n%s", renderGapTable(summary))
	s.printf("%s\n", summaryLine(summary))

	if !summary.Validation.Success && !summary.DryRun && summary.Validation.Output != "" {
		s.printf("\n%s\n", strings.TrimRight(summary.Validation.Output, "\n"))
	}

	return nil
}

// DisplayHooksInstalled lists the installed hook scripts.
func (s *SimpleUI) DisplayHooksInstalled(_ context.Context, hooks []string) error {
	for _, hook := range hooks {
		s.printf("Installed %s\n", hook)
	}

	return nil
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

// renderGapTable lists every gap with the number of tests generated for it.
func renderGapTable(summary Summary) string {
	generated := make(map[string]int)
	for _, test := range summary.Generated {
		generated[test.Symbol]++
	}

	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"File", "Uncovered Symbols", "Generated"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	symbols := 0
	tests := 0

	for _, gap := range summary.Gaps {
		count := 0
		for _, symbol := range gap.MissingSymbols {
			count += generated[symbol]
		}

		table.Append([]string{string(gap.File), strings.Join(gap.MissingSymbols, ", "), fmt.Sprintf("%d", count)})

		symbols += len(gap.MissingSymbols)
		tests += count
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total Files %d", len(summary.Gaps)),
		fmt.Sprintf("%d", symbols),
		fmt.Sprintf("%d", tests),
	})

	table.Render()

	return tableBuffer.String()
}

func summaryLine(summary Summary) string {
	changes := fmt.Sprintf("%d changed file(s), %d changed symbol(s)", len(summary.ChangedFiles), summary.ChangedSymbols)

	if summary.DryRun {
		return changes + "; dry run, no tests written"
	}

	expected := 0

	for _, test := range summary.Generated {
		if test.Status == m.StatusExpectedFailure {
			expected++
		}
	}

	result := fmt.Sprintf("%s; %d test(s) generated", changes, len(summary.Generated))
	if expected > 0 {
		result += fmt.Sprintf(", %d marked expected-failure", expected)
	}

	return result + "; " + validationLabel(summary.Validation)
}

func validationLabel(outcome m.ValidationOutcome) string {
	switch {
	case outcome.Skipped:
		return "validation skipped"
	case outcome.Success:
		return fmt.Sprintf("validation passed after %d attempt(s)", outcome.Attempts)
	default:
		return fmt.Sprintf("validation failed after %d attempt(s)", outcome.Attempts)
	}
}
