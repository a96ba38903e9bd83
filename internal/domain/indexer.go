package domain

import (
	"context"
	"fmt"
	"go/token"

	"gapfill.dev/pkg/gapfill/internal/adapter"
	m "gapfill.dev/pkg/gapfill/internal/model"
)

// SymbolIndexer turns Go source into an ordered list of symbols.
type SymbolIndexer interface {
	// Index parses content and returns its symbols. Invalid source yields a *ParseError.
	Index(ctx context.Context, path m.Path, content []byte) ([]m.Symbol, error)

	// IndexFile reads path from the project and indexes it.
	IndexFile(ctx context.Context, path m.Path) ([]m.Symbol, error)
}

type symbolIndexer struct {
	adapter.GoFileAdapter
	fsAdapter adapter.SourceFSAdapter
}

// NewSymbolIndexer creates a SymbolIndexer.
func NewSymbolIndexer(goFileAdapter adapter.GoFileAdapter, fsAdapter adapter.SourceFSAdapter) SymbolIndexer {
	return &symbolIndexer{
		GoFileAdapter: goFileAdapter,
		fsAdapter:     fsAdapter,
	}
}

func (si *symbolIndexer) Index(ctx context.Context, path m.Path, content []byte) ([]m.Symbol, error) {
	fset := token.NewFileSet()

	file, err := si.Parse(ctx, fset, string(path), content)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &ParseError{Path: path, Err: err}
	}

	return si.ExtractSymbols(fset, file, path), nil
}

func (si *symbolIndexer) IndexFile(ctx context.Context, path m.Path) ([]m.Symbol, error) {
	content, err := si.fsAdapter.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return si.Index(ctx, path, content)
}
