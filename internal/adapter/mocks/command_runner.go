// Package mocks provides in-memory test doubles for the adapter interfaces.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gapfill.dev/pkg/gapfill/internal/adapter"
)

// Call records one invocation of FakeCommandRunner.Run.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// Line returns the command line of the call.
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is the scripted outcome of a command.
type Response struct {
	Result adapter.CommandResult
	Err    error
	// Effect runs before the response is returned, e.g. to write a cover profile.
	Effect func(call Call)
}

// FakeCommandRunner is an in-memory adapter.CommandRunner. Responses are
// matched by command-line prefix; repeated responses for the same prefix are
// consumed in order and the last one is sticky.
type FakeCommandRunner struct {
	mu        sync.Mutex
	responses map[string][]Response
	prefixes  []string
	calls     []Call
	// Unavailable makes every unmatched command fail as if the binary were missing.
	Unavailable bool
}

// NewFakeCommandRunner constructs an empty FakeCommandRunner.
func NewFakeCommandRunner() *FakeCommandRunner {
	return &FakeCommandRunner{responses: map[string][]Response{}}
}

// On scripts the responses returned for commands starting with prefix.
func (f *FakeCommandRunner) On(prefix string, responses ...Response) *FakeCommandRunner {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.responses[prefix]; !ok {
		f.prefixes = append(f.prefixes, prefix)
	}

	f.responses[prefix] = append(f.responses[prefix], responses...)

	return f
}

// Succeed scripts a successful command with the given stdout.
func Succeed(stdout string) Response {
	return Response{Result: adapter.CommandResult{Stdout: stdout}}
}

// Fail scripts a command exiting with status 1.
func Fail(output string) Response {
	return Response{
		Result: adapter.CommandResult{Stdout: output, ExitCode: 1},
		Err:    fmt.Errorf("exited with status 1: %w", adapter.ErrToolFailed),
	}
}

// Missing scripts a command whose binary cannot be found.
func Missing() Response {
	return Response{
		Result: adapter.CommandResult{ExitCode: -1},
		Err:    fmt.Errorf("not found: %w", adapter.ErrToolUnavailable),
	}
}

// Run implements adapter.CommandRunner.
func (f *FakeCommandRunner) Run(ctx context.Context, dir string, name string, args ...string) (adapter.CommandResult, error) {
	if err := ctx.Err(); err != nil {
		return adapter.CommandResult{}, err
	}

	call := Call{Dir: dir, Name: name, Args: append([]string(nil), args...)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	response, ok := f.match(call.Line())
	f.mu.Unlock()

	if !ok {
		if f.Unavailable {
			response = Missing()
		} else {
			response = Fail("no scripted response for " + call.Line())
		}
	}

	if response.Effect != nil {
		response.Effect(call)
	}

	return response.Result, response.Err
}

// match picks the longest matching prefix. Callers hold f.mu.
func (f *FakeCommandRunner) match(line string) (Response, bool) {
	best := ""

	for _, prefix := range f.prefixes {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}

	queue, ok := f.responses[best]
	if !ok || len(queue) == 0 {
		return Response{}, false
	}

	response := queue[0]
	if len(queue) > 1 {
		f.responses[best] = queue[1:]
	}

	return response, true
}

// Calls returns every recorded invocation.
func (f *FakeCommandRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]Call(nil), f.calls...)
}

// CountPrefix counts recorded invocations whose command line starts with prefix.
func (f *FakeCommandRunner) CountPrefix(prefix string) int {
	count := 0

	for _, call := range f.Calls() {
		if strings.HasPrefix(call.Line(), prefix) {
			count++
		}
	}

	return count
}
