package metacache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Result is what a slot hands back to a caller. When Unchanged is set the
// caller already holds the current value and Value is the zero value.
type Result[T any] struct {
	Unchanged   bool
	Value       T
	Fingerprint string
}

type entry[T any] struct {
	value       T
	createdAt   time.Time
	fingerprint string
}

// GenerateFunc produces a fresh value for a slot.
type GenerateFunc[T any] func(ctx context.Context) (T, error)

// Slot caches a single value for ttl. Concurrent callers that find the slot
// empty or stale share one call to generate.
//
// Entries are never mutated once installed, only replaced, so a reader may
// keep using an entry pointer after the lock is released.
type Slot[T any] struct {
	name     string
	ttl      time.Duration
	generate GenerateFunc[T]
	clone    func(T) T
	now      func() time.Time

	mu    sync.RWMutex
	entry *entry[T]
	group singleflight.Group
}

// SlotOption customizes a Slot.
type SlotOption[T any] func(*Slot[T])

// WithClone sets the function used to hand each reader an independent copy
// of the cached value. Required for values containing slices or maps.
func WithClone[T any](clone func(T) T) SlotOption[T] {
	return func(s *Slot[T]) { s.clone = clone }
}

// WithClock overrides time.Now.
func WithClock[T any](now func() time.Time) SlotOption[T] {
	return func(s *Slot[T]) { s.now = now }
}

func NewSlot[T any](name string, ttl time.Duration, generate GenerateFunc[T], opts ...SlotOption[T]) *Slot[T] {
	s := &Slot[T]{
		name:     name,
		ttl:      ttl,
		generate: generate,
		clone:    func(v T) T { return v },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached value, regenerating it first if the slot is empty
// or older than ttl. If clientFingerprint matches the current entry the
// result is Unchanged.
//
// A failed regeneration installs nothing: the previous entry, if any, stays
// in place and the next Get tries again. If ctx ends while waiting, Get
// returns ctx.Err() and the regeneration carries on for other waiters.
func (s *Slot[T]) Get(ctx context.Context, clientFingerprint string) (Result[T], error) {
	if e := s.fresh(); e != nil {
		return s.result(e, clientFingerprint), nil
	}

	ch := s.group.DoChan(s.name, func() (any, error) {
		// Another flight may have finished between our check and this one.
		if e := s.fresh(); e != nil {
			return e, nil
		}
		return s.regenerate(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result[T]{}, res.Err
		}
		return s.result(res.Val.(*entry[T]), clientFingerprint), nil
	}
}

func (s *Slot[T]) regenerate(ctx context.Context) (*entry[T], error) {
	value, err := s.generate(ctx)
	if err != nil {
		return nil, err
	}

	fp, err := Fingerprint(value)
	if err != nil {
		return nil, err
	}

	e := &entry[T]{value: value, createdAt: s.now(), fingerprint: fp}

	s.mu.Lock()
	s.entry = e
	s.mu.Unlock()

	return e, nil
}

// fresh returns the current entry if it is within ttl.
func (s *Slot[T]) fresh() *entry[T] {
	s.mu.RLock()
	e := s.entry
	s.mu.RUnlock()

	if e == nil || s.now().Sub(e.createdAt) > s.ttl {
		return nil
	}
	return e
}

func (s *Slot[T]) result(e *entry[T], clientFingerprint string) Result[T] {
	if clientFingerprint != "" && clientFingerprint == e.fingerprint {
		return Result[T]{Unchanged: true, Fingerprint: e.fingerprint}
	}
	return Result[T]{Value: s.clone(e.value), Fingerprint: e.fingerprint}
}

// Fingerprint derives an opaque equality token from v's JSON encoding. It
// is stable only for the lifetime of the process.
func Fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
}
