package domain

import (
	"context"
	"log/slog"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// maxValidationAttempts bounds the test runs: the initial run plus one retry.
const maxValidationAttempts = 2

// Validator runs the project tests after generation and, when they fail,
// downgrades the generated tests to expected failures and retries once.
type Validator interface {
	// Validate may flip the status of generated tests to expected-failure.
	Validate(ctx context.Context, generated *m.GenerationResult) m.ValidationOutcome
}

type validator struct {
	goFile     adapter.GoFileAdapter
	fsAdapter  adapter.SourceFSAdapter
	testRunner adapter.TestRunnerAdapter
	settings   Settings
	logger     *slog.Logger
}

// NewValidator constructs a Validator.
func NewValidator(
	goFile adapter.GoFileAdapter,
	fsAdapter adapter.SourceFSAdapter,
	testRunner adapter.TestRunnerAdapter,
	settings Settings,
	logger *slog.Logger,
) Validator {
	return &validator{
		goFile:     goFile,
		fsAdapter:  fsAdapter,
		testRunner: testRunner,
		settings:   settings,
		logger:     logger,
	}
}

func (v *validator) Validate(ctx context.Context, generated *m.GenerationResult) m.ValidationOutcome {
	outcome := v.run(ctx, 1)
	if outcome.Success || outcome.Skipped {
		return outcome
	}

	v.logger.Warn("Test suite failed, marking generated tests as expected failures", "tests", len(generated.Tests))
	v.markExpectedFailures(ctx, generated)

	return v.run(ctx, maxValidationAttempts)
}

func (v *validator) run(ctx context.Context, attempt int) m.ValidationOutcome {
	result, err := v.testRunner.RunGoTest(ctx, v.settings.WorkDir)

	switch {
	case err == nil:
		v.logger.Info("Test suite passed", "attempt", attempt)

		return m.ValidationOutcome{Success: true, Output: result.Combined(), Attempts: attempt}

	case adapter.IsUnavailable(err):
		v.logger.Warn("Test runner unavailable, skipping validation", "error", err)

		return m.ValidationOutcome{
			Success:  true,
			Skipped:  true,
			Output:   "validation skipped: " + err.Error(),
			Attempts: attempt,
		}

	default:
		v.logger.Warn("Test suite failed", "attempt", attempt, "error", err)

		return m.ValidationOutcome{Output: result.Combined(), Attempts: attempt}
	}
}

// markExpectedFailures rewrites each generated test in place with the
// expected-failure directive and a leading skip. Every file is written once.
func (v *validator) markExpectedFailures(ctx context.Context, generated *m.GenerationResult) {
	var files []m.Path

	byFile := make(map[m.Path][]int)

	for i, test := range generated.Tests {
		if _, ok := byFile[test.File]; !ok {
			files = append(files, test.File)
		}

		byFile[test.File] = append(byFile[test.File], i)
	}

	for _, file := range files {
		if !v.fsAdapter.Exists(file) {
			v.logger.Warn("Generated test file disappeared", "file", file)
			continue
		}

		tf, err := loadTestFile(v.goFile, v.fsAdapter, file)
		if err != nil {
			v.logger.Error("Failed to load generated test file", "file", file, "error", err)
			continue
		}

		if _, err := tf.ensureImport(ctx, "", "testing", "testing"); err != nil {
			v.logger.Error("Failed to parse generated test file", "file", file, "error", err)
			continue
		}

		for _, i := range byFile[file] {
			test := &generated.Tests[i]
			test.Status = m.StatusExpectedFailure

			found, err := tf.replaceFunc(ctx, test.Name, renderTest(*test))
			if err != nil {
				v.logger.Error("Failed to rewrite generated test", "test", test.Name, "error", err)
				break
			}

			if !found {
				v.logger.Warn("Generated test not found", "test", test.Name, "file", file)
			}
		}

		if err := v.fsAdapter.WriteFile(file, tf.bytes(), 0o644); err != nil {
			v.logger.Error("Failed to write generated test file", "file", file, "error", err)
		}
	}
}
