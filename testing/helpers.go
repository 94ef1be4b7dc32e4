// Package testing provides test utilities for forge-based applications.
//
// MockExecutor stands in for the database at the execution boundary. It
// records every statement it receives and answers from configured
// expectations, so composed queries can be tested without a database.
//
// Example usage:
//
//	func TestTeams(t *testing.T) {
//		mock := forgetest.NewMockExecutor(t)
//		mock.ExpectQuery().
//			WithResult(`[{"id":1,"name":"Reds"}]`)
//
//		f, _ := forge.New(nil, forge.WithExecutor(mock))
//		teams, _ := forge.Register[Team](f)
//		results, err := teams.Select().Exec(ctx)
//
//		require.NoError(t, err)
//		assert.Len(t, results, 1)
//		mock.AssertExpectations()
//	}
package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// MockExecutor is a configurable mock of the execution boundary.
// It tracks calls, allows configuring return values, and provides assertion methods.
type MockExecutor struct {
	t            *testing.T
	expectations []*Expectation
	calls        []MockCall
	mu           sync.Mutex
	currentIdx   int
}

// MockCall represents a single statement handed to the executor.
type MockCall struct {
	Kind string // "query" or "exec"
	SQL  string
}

// Expectation represents an expected executor call.
type Expectation struct {
	kind         string
	contains     []string
	result       string
	rowsAffected int64
	err          error
	times        int // expected call count, -1 for any
	actualCalls  int
}

// NewMockExecutor creates a new mock executor for testing.
func NewMockExecutor(t *testing.T) *MockExecutor {
	return &MockExecutor{
		t:            t,
		expectations: make([]*Expectation, 0),
		calls:        make([]MockCall, 0),
	}
}

// ExpectQuery configures the mock to expect a query returning JSON text.
func (m *MockExecutor) ExpectQuery() *ExpectationBuilder {
	return m.expect("query")
}

// ExpectExec configures the mock to expect a mutating statement.
func (m *MockExecutor) ExpectExec() *ExpectationBuilder {
	return m.expect("exec")
}

func (m *MockExecutor) expect(kind string) *ExpectationBuilder {
	exp := &Expectation{
		kind:  kind,
		times: 1,
	}
	m.mu.Lock()
	m.expectations = append(m.expectations, exp)
	m.mu.Unlock()
	return &ExpectationBuilder{exp: exp}
}

// Query implements forge.Executor.
func (m *MockExecutor) Query(_ context.Context, sql string) (string, error) {
	exp, err := m.next("query", sql)
	if err != nil {
		return "", err
	}
	return exp.result, exp.err
}

// Exec implements forge.Executor.
func (m *MockExecutor) Exec(_ context.Context, sql string) (int64, error) {
	exp, err := m.next("exec", sql)
	if err != nil {
		return 0, err
	}
	return exp.rowsAffected, exp.err
}

// next records the call and matches it against the current expectation.
func (m *MockExecutor) next(kind, sql string) (*Expectation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Kind: kind, SQL: sql})

	if m.currentIdx >= len(m.expectations) {
		return nil, fmt.Errorf("unexpected %s: %s", kind, sql)
	}
	exp := m.expectations[m.currentIdx]
	if exp.kind != kind {
		return nil, fmt.Errorf("expected %s, got %s: %s", exp.kind, kind, sql)
	}
	for _, fragment := range exp.contains {
		if !strings.Contains(sql, fragment) {
			return nil, fmt.Errorf("%s does not contain %q: %s", kind, fragment, sql)
		}
	}

	exp.actualCalls++
	if exp.times != -1 && exp.actualCalls >= exp.times {
		m.currentIdx++
	}
	return exp, nil
}

// Calls returns all recorded calls.
func (m *MockExecutor) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of calls made.
func (m *MockExecutor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastSQL returns the statement of the most recent call, or "".
func (m *MockExecutor) LastSQL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return ""
	}
	return m.calls[len(m.calls)-1].SQL
}

// Reset clears all expectations and recorded calls.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expectations = make([]*Expectation, 0)
	m.calls = make([]MockCall, 0)
	m.currentIdx = 0
}

// AssertExpectations verifies all expectations were met.
func (m *MockExecutor) AssertExpectations() {
	m.t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, exp := range m.expectations {
		if exp.times != -1 && exp.actualCalls != exp.times {
			m.t.Errorf("expectation %d: expected %d calls, got %d", i, exp.times, exp.actualCalls)
		}
	}
}

// AssertCalled verifies a specific number of calls were made.
func (m *MockExecutor) AssertCalled(expectedCalls int) {
	m.t.Helper()
	actualCalls := m.CallCount()
	if actualCalls != expectedCalls {
		m.t.Errorf("expected %d calls, got %d", expectedCalls, actualCalls)
	}
}

// ExpectationBuilder provides a fluent API for configuring expectations.
type ExpectationBuilder struct {
	exp *Expectation
}

// WithResult configures the JSON text a query expectation returns.
func (b *ExpectationBuilder) WithResult(result string) *ExpectationBuilder {
	b.exp.result = result
	return b
}

// WithRowsAffected configures the count an exec expectation returns.
func (b *ExpectationBuilder) WithRowsAffected(n int64) *ExpectationBuilder {
	b.exp.rowsAffected = n
	return b
}

// WithError configures an error to return.
func (b *ExpectationBuilder) WithError(err error) *ExpectationBuilder {
	b.exp.err = err
	return b
}

// Containing requires the statement to contain every fragment.
func (b *ExpectationBuilder) Containing(fragments ...string) *ExpectationBuilder {
	b.exp.contains = append(b.exp.contains, fragments...)
	return b
}

// Times configures how many times this expectation should match.
func (b *ExpectationBuilder) Times(n int) *ExpectationBuilder {
	b.exp.times = n
	return b
}

// AnyTimes configures the expectation to match any number of times.
func (b *ExpectationBuilder) AnyTimes() *ExpectationBuilder {
	b.exp.times = -1
	return b
}
