package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// RunSummary counts the outcome of one sync run. It is safe for concurrent use.
type RunSummary struct {
	mu sync.Mutex

	Attempted int
	Succeeded int
	Skipped   int
	Failed    int
	Inactive  int
	Records   int
	Errors    map[ErrorKind]int
}

func NewRunSummary() *RunSummary {
	return &RunSummary{Errors: make(map[ErrorKind]int)}
}

func (s *RunSummary) AddAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Attempted++
}

func (s *RunSummary) AddSuccess(records int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Succeeded++
	s.Records += records
}

func (s *RunSummary) AddSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
}

func (s *RunSummary) AddInactive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inactive++
}

// AddFailure counts a failed URL under the kind of err
func (s *RunSummary) AddFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
	s.Errors[KindOf(err)]++
}

// AddError records a recoverable error that did not fail its URL
func (s *RunSummary) AddError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors[KindOf(err)]++
}

func (s *RunSummary) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Records
}

// AllFailed reports whether at least one URL was attempted and none succeeded
func (s *RunSummary) AllFailed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Attempted > 0 && s.Failed == s.Attempted
}

func (s *RunSummary) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "attempted=%d succeeded=%d skipped=%d failed=%d inactive=%d records=%d",
		s.Attempted, s.Succeeded, s.Skipped, s.Failed, s.Inactive, s.Records)
	for _, kind := range slices.Sorted(maps.Keys(s.Errors)) {
		fmt.Fprintf(&b, " %s_errors=%d", kind, s.Errors[kind])
	}
	return b.String()
}
