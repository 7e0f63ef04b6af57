// Package pagestate is the fetch lifecycle of one paginated view, modelled as
// an immutable tagged union with pure transitions.
package pagestate

import "cidash/internal/params"

// Phase tags the variant a State holds.
type Phase int

const (
	NotLoaded Phase = iota
	Loading
	Loaded
	Failed
)

func (p Phase) String() string {
	switch p {
	case NotLoaded:
		return "not_loaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pagination describes the neighbours of a fetched page. NextParams and
// PrevParams are patches to merge into the current params, nil when absent.
type Pagination struct {
	HasNext     bool
	HasPrevious bool
	NextParams  params.Params
	PrevParams  params.Params
}

// Result is one fetched page. It is never mutated after construction.
type Result[T any] struct {
	Data       []T
	Pagination Pagination
}

// State is one of:
//
//	NotLoaded
//	Loading(previous, initial)
//	Loaded(result)
//	Failed(err, previous)
//
// The zero value is NotLoaded.
type State[T any] struct {
	phase    Phase
	result   *Result[T] // Loaded only
	previous *Result[T] // Loading and Failed: last good result
	err      error      // Failed only
	initial  bool       // Loading only: nothing has resolved yet
}

// Begin starts a fetch. The displayed result, if any, is retained as
// previous. A fetch begun from Loading keeps that Loading's previous.
func (s State[T]) Begin() State[T] {
	switch s.phase {
	case NotLoaded:
		return State[T]{phase: Loading, initial: true}
	case Loading:
		return s
	case Loaded:
		return State[T]{phase: Loading, previous: s.result}
	default: // Failed
		return State[T]{phase: Loading, previous: s.previous}
	}
}

// Resolve completes a fetch with r.
func (s State[T]) Resolve(r *Result[T]) State[T] {
	return State[T]{phase: Loaded, result: r}
}

// Reject completes a fetch with err, keeping the last good result.
func (s State[T]) Reject(err error) State[T] {
	return State[T]{phase: Failed, err: err, previous: s.DataToShow()}
}

// Phase reports the current variant.
func (s State[T]) Phase() Phase { return s.phase }

// Err is the failure in Failed, nil otherwise.
func (s State[T]) Err() error { return s.err }

// DataToShow is the Loaded result, else the retained previous result, else
// nil.
func (s State[T]) DataToShow() *Result[T] {
	if s.phase == Loaded {
		return s.result
	}
	return s.previous
}

// HasNotLoadedInitialData is true until the first fetch resolves, whether it
// succeeds or fails.
func (s State[T]) HasNotLoadedInitialData() bool {
	return s.phase == NotLoaded || (s.phase == Loading && s.initial)
}

// IsLoadingUpdatedData distinguishes a refresh over displayed data from a
// first load.
func (s State[T]) IsLoadingUpdatedData() bool {
	return s.phase == Loading && s.previous != nil
}

// FailedToLoadUpdatedData is true in Failed.
func (s State[T]) FailedToLoadUpdatedData() bool {
	return s.phase == Failed
}
