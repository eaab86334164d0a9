package store

import "errors"

// Selector routes each persistence call to the primary store or to the
// flat-file demo store. The primary's connection state is probed per call and
// never cached, so a database that comes back mid-session is picked up on the
// next request.
type Selector struct {
	primary  *DBStore // nil when the process never reached the database
	demo     *FlatStore
	fallback bool
}

func NewSelector(primary *DBStore, demo *FlatStore, fallback bool) *Selector {
	return &Selector{primary: primary, demo: demo, fallback: fallback}
}

// Current returns the store to use for this call and whether it is the demo
// store. A process that never reached the database serves demo regardless of
// the fallback switch; an unreachable primary falls back only when the switch
// is on, otherwise its errors surface to the caller.
func (s *Selector) Current() (Store, bool) {
	if s.primary == nil {
		return s.demo, true
	}
	if s.primary.Ping() == nil {
		return s.primary, false
	}
	if s.fallback {
		return s.demo, true
	}
	return s.primary, false
}

// Demo returns the flat-file store.
func (s *Selector) Demo() *FlatStore {
	return s.demo
}

// ShouldFallback reports whether an error from the primary path should be
// retried against the demo store. Only the unavailable class falls back, and
// only when the fallback switch is on.
func (s *Selector) ShouldFallback(err error) bool {
	return s.fallback && errors.Is(err, ErrUnavailable)
}
