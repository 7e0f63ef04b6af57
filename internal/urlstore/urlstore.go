// Package urlstore keeps the shareable location of the dashboard. The query
// string is the only durable representation of view state.
package urlstore

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Store reads and writes the current query string. SetQuery never triggers
// navigation.
type Store interface {
	Query() string
	SetQuery(query string)
}

// Location is a Store for a base URL plus a mutable query. Safe for
// concurrent use.
type Location struct {
	mu       sync.RWMutex
	base     url.URL
	query    string
	onChange []func(string)
}

// Parse builds a Location from a full URL; its query becomes the initial
// query.
func Parse(raw string) (*Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	l := &Location{base: *u, query: u.RawQuery}
	l.base.RawQuery = ""
	l.base.Fragment = ""
	return l, nil
}

// Query returns the current query without a leading '?'.
func (l *Location) Query() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.query
}

// SetQuery replaces the query and notifies watchers if it changed.
func (l *Location) SetQuery(query string) {
	query = strings.TrimPrefix(query, "?")
	l.mu.Lock()
	if l.query == query {
		l.mu.Unlock()
		return
	}
	l.query = query
	watchers := append([]func(string){}, l.onChange...)
	l.mu.Unlock()

	for _, fn := range watchers {
		fn(query)
	}
}

// SetPath points the location at another page, keeping the query.
func (l *Location) SetPath(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.Path = path
}

// Watch registers fn to run after each query change.
func (l *Location) Watch(fn func(query string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// String renders the full shareable URL.
func (l *Location) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u := l.base
	u.RawQuery = l.query
	return u.String()
}
