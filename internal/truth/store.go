// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package truth implements the append-only, single-writer Truth Store: a
// badger-backed index over (scope, lane, canonicalTruthTime, eventId) with
// ordered range scans and restartable tail subscriptions.
//
// Grounded on the teacher's internal/v3/store/badger_store.go key/value
// persistence idiom, generalized from a single "sessions" table to the
// lane-keyed, range-scanned truth log the spec requires.
package truth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/log"
)

// MinTick is the "minimum representable time increment" referenced by the
// spec's open question on canonicalTruthTime tie-breaking: one nanosecond,
// the resolution of time.Time on every platform Go targets.
const MinTick = time.Nanosecond

// Store is the append-only Truth Store.
type Store struct {
	db *badger.DB

	mu   sync.Mutex
	wake map[string]chan struct{} // scope -> broadcast channel for tail wakeups
}

// Open opens (creating if absent) a badger-backed Truth Store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.New("truth.Open", errs.StoreUnavailable, err)
	}
	return &Store{db: db, wake: make(map[string]chan struct{})}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) waitChan(scope string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.wake[scope]
	if !ok {
		ch = make(chan struct{})
		s.wake[scope] = ch
	}
	return ch
}

func (s *Store) notify(scope string) {
	s.mu.Lock()
	ch, ok := s.wake[scope]
	s.wake[scope] = make(chan struct{})
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Append inserts ev, assigning its final CanonicalTruthTime under the
// single-writer monotonicity rule (I3): the assigned time is strictly
// greater than every prior canonicalTruthTime in the scope. It is idempotent
// on EventID (I1): a second append with an already-present EventID is a
// no-op that returns the original persisted event with duplicate=true.
func (s *Store) Append(ctx context.Context, ev Event) (Event, bool, error) {
	if ev.ScopeID == "" || ev.Identity.Empty() {
		return Event{}, false, errs.New("truth.Append", errs.SchemaError, fmt.Errorf("missing scope or identity"))
	}
	if !ev.Lane.Valid() {
		return Event{}, false, errs.New("truth.Append", errs.SchemaError, fmt.Errorf("unknown lane %q", ev.Lane))
	}
	if ev.EventID == "" {
		return Event{}, false, errs.New("truth.Append", errs.SchemaError, fmt.Errorf("missing eventId"))
	}

	proposed := ev.CanonicalTruthTime
	if proposed.IsZero() {
		if ev.SourceTruthTime != nil {
			proposed = *ev.SourceTruthTime
		} else {
			proposed = time.Now().UTC()
		}
	}

	var final Event
	var duplicate bool

	err := s.db.Update(func(txn *badger.Txn) error {
		dk := dedupeKey(ev.ScopeID, ev.EventID)
		if item, err := txn.Get(dk); err == nil {
			duplicate = true
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &final)
			})
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		head := Zero
		if item, err := txn.Get(scopeHeadKey(ev.ScopeID)); err == nil {
			if err := item.Value(func(val []byte) error {
				head = decodeCursorValue(val)
				return nil
			}); err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		assigned := proposed
		if !assigned.After(head.Time) {
			assigned = head.Time.Add(MinTick)
		}

		final = ev
		final.CanonicalTruthTime = assigned

		buf, err := json.Marshal(final)
		if err != nil {
			return err
		}

		if err := txn.Set(eventKey(ev.ScopeID, ev.Lane, assigned, ev.EventID), buf); err != nil {
			return err
		}
		if err := txn.Set(dk, buf); err != nil {
			return err
		}
		newHead := Cursor{Time: assigned, EventID: ev.EventID}
		if err := txn.Set(scopeHeadKey(ev.ScopeID), encodeCursorValue(newHead)); err != nil {
			return err
		}
		return txn.Set(laneHeadKey(ev.ScopeID, ev.Lane), encodeCursorValue(newHead))
	})
	if err != nil {
		return Event{}, false, errs.New("truth.Append", errs.StoreUnavailable, err)
	}

	if !duplicate {
		s.notify(ev.ScopeID)
		log.WithComponent("truth").Debug().
			Str("scope", ev.ScopeID).Str("lane", string(ev.Lane)).Str("eventId", ev.EventID).
			Msg("event appended")
	}

	return final, duplicate, nil
}

// GetCursorHead returns the current top of the log for scope.
func (s *Store) GetCursorHead(ctx context.Context, scope string) (Cursor, error) {
	var head Cursor
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(scopeHeadKey(scope))
		if err == badger.ErrKeyNotFound {
			head = Zero
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			head = decodeCursorValue(val)
			return nil
		})
	})
	if err != nil {
		return Zero, errs.New("truth.GetCursorHead", errs.StoreUnavailable, err)
	}
	return head, nil
}

// ReplayLane invokes fn for every persisted event in lane, across every
// scope, in storage order. It exists for process-local state that the log
// is the sole source of truth for (the manifest registry, per the package
// doc on internal/manifest) and needs rebuilding on startup.
func (s *Store) ReplayLane(ctx context.Context, lane Lane, fn func(Event)) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixEvent)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var ev Event
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return err
			}
			if ev.Lane == lane {
				fn(ev)
			}
		}
		return nil
	})
	if err != nil {
		return errs.New("truth.ReplayLane", errs.StoreUnavailable, err)
	}
	return nil
}

// Iterator yields events in total order until exhausted or Close is called.
type Iterator struct {
	events []Event
	pos    int
}

func (it *Iterator) Next() bool { it.pos++; return it.pos < len(it.events) }
func (it *Iterator) Event() Event {
	if it.pos < 0 || it.pos >= len(it.events) {
		return Event{}
	}
	return it.events[it.pos]
}
func (it *Iterator) Close() error { return nil }

// Range returns every event in (scope, lanes) with startTime <= canonicalTruthTime
// <= stopTime matching filters, in total order (I2).
func (s *Store) Range(ctx context.Context, scope string, lanes LaneSet, start, stop time.Time, filters Filters) (*Iterator, error) {
	if stop.Before(start) {
		return nil, errs.New("truth.Range", errs.SchemaError, fmt.Errorf("stopTime before startTime"))
	}

	merged := make([]Event, 0, 256)
	err := s.db.View(func(txn *badger.Txn) error {
		for lane := range lanes {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = true
			it := txn.NewIterator(opts)
			prefix := eventRangePrefix(scope, lane)
			seekKey := append(append([]byte{}, prefix...), timeKey(start)...)
			for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				var ev Event
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &ev)
				}); err != nil {
					it.Close()
					return err
				}
				if ev.CanonicalTruthTime.After(stop) {
					break
				}
				if !ev.CanonicalTruthTime.Before(start) && filters.Match(ev) {
					merged = append(merged, ev)
				}
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, errs.New("truth.Range", errs.StoreUnavailable, err)
	}

	sortEvents(merged)
	return &Iterator{events: merged, pos: -1}, nil
}

func sortEvents(evs []Event) {
	// Insertion sort is adequate: chunk sizes are bounded by chunking policy
	// and range windows are typically small relative to the whole store.
	for i := 1; i < len(evs); i++ {
		for j := i; j > 0 && CursorOf(evs[j]).Less(CursorOf(evs[j-1])); j-- {
			evs[j], evs[j-1] = evs[j-1], evs[j]
		}
	}
}

// Tail streams events in (scope, lanes) matching filters as they arrive,
// starting strictly after fromCursor (or the scope head at subscription
// time if fromCursor is nil). The returned channel is closed when ctx is
// cancelled.
func (s *Store) Tail(ctx context.Context, scope string, lanes LaneSet, filters Filters, fromCursor *Cursor) (<-chan Event, error) {
	out := make(chan Event, 256)

	var after Cursor
	if fromCursor != nil {
		after = *fromCursor
	} else {
		head, err := s.GetCursorHead(ctx, scope)
		if err != nil {
			return nil, err
		}
		after = head
	}

	go func() {
		defer close(out)
		for {
			wake := s.waitChan(scope)

			head, err := s.GetCursorHead(ctx, scope)
			if err == nil && after.Less(head) {
				it, err := s.Range(ctx, scope, lanes, after.Time, head.Time, filters)
				if err == nil {
					for it.Next() {
						ev := it.Event()
						c := CursorOf(ev)
						if !after.Less(c) {
							continue
						}
						select {
						case out <- ev:
							after = c
						case <-ctx.Done():
							return
						}
					}
				}
				after = head
			}

			select {
			case <-ctx.Done():
				return
			case <-wake:
			case <-time.After(2 * time.Second):
				// periodic re-check guards against a missed notification
				// racing with subscription setup.
			}
		}
	}()

	return out, nil
}
