// Package aggregate folds per-item analysis results into one bundle per
// contributor.
package aggregate

import (
	"github.com/cockroachdb/errors"

	"github.com/codeGROOVE-dev/ghweekly/pkg/activity"
)

// ErrNoActivity is returned when a fold produced no bundles.
var ErrNoActivity = errors.New("no activity processed")

// Result is the outcome of analyzing one record.
type Result struct {
	Contributor string
	SourceURL   string
	Summary     string
}

// FromRecord converts an analyzed record into a Result.
func FromRecord(r activity.Record) Result {
	return Result{Contributor: r.Contributor, SourceURL: r.SourceURL, Summary: r.Summary}
}

// Map holds bundles keyed by contributor in first-seen order.
type Map struct {
	bundles map[string]*activity.Bundle
	keys    []string
}

// Fold groups results by contributor. Within a bundle URLs and summaries
// appear in input order and stay line-aligned. Fold must be called after all
// concurrent producers have finished.
func Fold(results []Result) (*Map, error) {
	m := &Map{bundles: make(map[string]*activity.Bundle)}
	for _, r := range results {
		if b, ok := m.bundles[r.Contributor]; ok {
			b.Append(r.SourceURL, r.Summary)
			continue
		}
		m.bundles[r.Contributor] = activity.NewBundle(r.Contributor, r.SourceURL, r.Summary)
		m.keys = append(m.keys, r.Contributor)
	}
	if len(m.keys) == 0 {
		return nil, ErrNoActivity
	}
	return m, nil
}

// Keys returns contributors in first-seen order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Get returns the bundle for login.
func (m *Map) Get(login string) (*activity.Bundle, bool) {
	if m == nil {
		return nil, false
	}
	b, ok := m.bundles[login]
	return b, ok
}

// Len returns the number of contributors.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Bundles returns all bundles in first-seen order.
func (m *Map) Bundles() []*activity.Bundle {
	if m == nil {
		return nil
	}
	out := make([]*activity.Bundle, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.bundles[k])
	}
	return out
}

// Records returns the total number of folded results.
func (m *Map) Records() int {
	n := 0
	for _, b := range m.Bundles() {
		n += b.Count()
	}
	return n
}
