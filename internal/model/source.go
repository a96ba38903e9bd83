// Package model defines the data structures shared by the gapfill pipeline.
package model

import "fmt"

// Path represents a slash-separated path relative to the project root.
type Path string

// SymbolKind classifies a declaration.
type SymbolKind string

const (
	// SymbolFunction represents a function or a method.
	SymbolFunction SymbolKind = "function"

	// SymbolType represents a named type declaration.
	SymbolType SymbolKind = "type"
)

// Symbol is a named declaration together with its inclusive line range.
type Symbol struct {
	Name      string
	Kind      SymbolKind
	File      Path
	StartLine int
	EndLine   int
	// Receiver holds the receiver type name for methods; Name is then "Receiver.Method".
	Receiver string
	// Nested reports a declaration made inside a function body.
	Nested bool
}

// ID returns the identity of the symbol. Names alone are not unique because
// nested declarations may repeat them.
func (s Symbol) ID() string {
	return fmt.Sprintf("%s:%s:%d", s.File, s.Name, s.StartLine)
}

// Contains reports whether line lies within the symbol range.
func (s Symbol) Contains(line int) bool {
	return line >= s.StartLine && line <= s.EndLine
}

// ChangeSet lists the files and symbols touched by the most recent change.
type ChangeSet struct {
	ChangedFiles   []Path
	ChangedSymbols []Symbol
}
