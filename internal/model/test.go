package model

// TestCase is a test discovered in an existing test file. Grouped tests are
// named "Suite.TestMethod".
type TestCase struct {
	Name string
	File Path
}

// DiscoveryResult maps each test file to the tests it defines.
type DiscoveryResult struct {
	TestsByFile map[Path][]TestCase
}

// TestStatus is the state of a generated test.
type TestStatus string

const (
	// StatusPending marks a generated test that is expected to pass.
	StatusPending TestStatus = "pending"
	// StatusExpectedFailure marks a generated test that is allowed to fail.
	StatusExpectedFailure TestStatus = "expected-failure"
)

// GeneratedTest is a test stub emitted by the generator. The text written to
// disk is always rendered from this record.
type GeneratedTest struct {
	Name   string
	File   Path
	Symbol string
	Body   []string
	Status TestStatus
}

// GenerationResult lists the tests generated during a run.
type GenerationResult struct {
	Tests []GeneratedTest
}
