package domain

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// ChangeDetector identifies the source files and symbols touched by the most
// recent change.
type ChangeDetector interface {
	// Detect combines DetectChangedFiles and DetectChangedSymbols.
	Detect(ctx context.Context) m.ChangeSet

	// DetectChangedFiles lists changed Go source files under the source root.
	// It never fails: an unavailable or failing git yields an empty list.
	DetectChangedFiles(ctx context.Context) []m.Path

	// DetectChangedSymbols narrows a changed file to the symbols whose
	// declaration lines were added. When nothing can be narrowed every symbol
	// of the file is returned.
	DetectChangedSymbols(ctx context.Context, file m.Path) []m.Symbol
}

type changeDetector struct {
	vcs       adapter.VCSAdapter
	fsAdapter adapter.SourceFSAdapter
	indexer   SymbolIndexer
	settings  Settings
	logger    *slog.Logger

	// rng is the range the last file listing was computed for.
	rng adapter.DiffRange
}

// NewChangeDetector constructs a ChangeDetector.
func NewChangeDetector(
	vcs adapter.VCSAdapter,
	fsAdapter adapter.SourceFSAdapter,
	indexer SymbolIndexer,
	settings Settings,
	logger *slog.Logger,
) ChangeDetector {
	return &changeDetector{
		vcs:       vcs,
		fsAdapter: fsAdapter,
		indexer:   indexer,
		settings:  settings,
		logger:    logger,
	}
}

func (cd *changeDetector) Detect(ctx context.Context) m.ChangeSet {
	changes := m.ChangeSet{ChangedFiles: cd.DetectChangedFiles(ctx)}

	for _, file := range changes.ChangedFiles {
		changes.ChangedSymbols = append(changes.ChangedSymbols, cd.DetectChangedSymbols(ctx, file)...)
	}

	cd.logger.Info("Detected changes", "files", len(changes.ChangedFiles), "symbols", len(changes.ChangedSymbols))

	return changes
}

func (cd *changeDetector) DetectChangedFiles(ctx context.Context) []m.Path {
	names, rng, err := cd.vcs.ChangedFiles(ctx, cd.settings.WorkDir)
	if err != nil {
		if adapter.IsUnavailable(err) {
			cd.logger.Warn("Version control unavailable, no changes detected", "error", err)
		} else {
			cd.logger.Warn("Failed to list changed files", "error", err)
		}

		return nil
	}

	cd.rng = rng
	sourceRoot := cd.settings.sourceRoot()

	var files []m.Path

	for _, name := range names {
		file := m.Path(name)

		switch {
		case !isGoSource(file):
			continue
		case !under(file, sourceRoot):
			continue
		case cd.settings.Exclude.Excluded(file):
			cd.logger.Debug("Skipping excluded file", "file", file)
			continue
		case !cd.fsAdapter.Exists(file):
			cd.logger.Debug("Skipping deleted file", "file", file)
			continue
		}

		files = append(files, file)
	}

	return files
}

func (cd *changeDetector) DetectChangedSymbols(ctx context.Context, file m.Path) []m.Symbol {
	symbols, err := cd.indexer.IndexFile(ctx, file)
	if err != nil {
		cd.logger.Warn("Failed to index changed file", "file", file, "error", err)
		return nil
	}

	names := cd.declaredNames(ctx, file)
	if len(names) == 0 {
		return symbols
	}

	var matched []m.Symbol

	for _, symbol := range symbols {
		if _, ok := names[symbol.Name]; ok {
			matched = append(matched, symbol)
		}
	}

	if len(matched) == 0 {
		return symbols
	}

	return matched
}

// declaredNames collects the names declared on added diff lines.
func (cd *changeDetector) declaredNames(ctx context.Context, file m.Path) map[string]struct{} {
	rng := cd.rng
	if rng == nil {
		rng = adapter.PreviousCommitRange
	}

	fileDiff, err := cd.vcs.FileDiff(ctx, cd.settings.WorkDir, rng, string(file))
	if err != nil && errors.Is(err, adapter.ErrToolFailed) && len(rng) > 1 {
		fileDiff, err = cd.vcs.FileDiff(ctx, cd.settings.WorkDir, adapter.WorkingTreeRange, string(file))
	}

	if err != nil {
		cd.logger.Debug("Failed to diff changed file", "file", file, "error", err)
		return nil
	}

	names := make(map[string]struct{})

	for _, line := range adapter.AddedLines(fileDiff) {
		if name := DeclaredName(line); name != "" {
			names[name] = struct{}{}
		}
	}

	return names
}

var declarationPattern = regexp.MustCompile(
	`^func\s+(?:\(\s*(?:\w+\s+)?\*?\s*(\w+)(?:\[[^\]]*\])?\s*\)\s*)?(\w+)|^type\s+(\w+)`,
)

// DeclaredName extracts the symbol name declared on a single source line.
// Methods are reported as Receiver.Method. Lines that do not start a function
// or type declaration yield "".
func DeclaredName(line string) string {
	match := declarationPattern.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return ""
	}

	switch {
	case match[3] != "":
		return match[3]
	case match[1] != "":
		return match[1] + "." + match[2]
	default:
		return match[2]
	}
}
