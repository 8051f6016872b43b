package search

import (
	"github.com/poiesic/rowseek/core"
	"github.com/poiesic/rowseek/results"
)

// Monitor provides hooks to observe the search process.
// All hooks are called from the goroutine that called Search.
type Monitor interface {
	Start(spec *core.QuerySpec)
	AfterScope(sourceIDs []string, columns []string)
	AfterFilter(scanned, passed int)
	AfterScoring(scored, matched int)
	Finish(rs *results.ResultSet)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ *core.QuerySpec)           {}
func (n *noopMonitor) AfterScope(_ []string, _ []string) {}
func (n *noopMonitor) AfterFilter(_, _ int)              {}
func (n *noopMonitor) AfterScoring(_, _ int)             {}
func (n *noopMonitor) Finish(_ *results.ResultSet)       {}
