package lightning

import (
	"context"
	"errors"
	"sync"
)

// Slot arbitrates a single display target, such as the one invoice a
// widget shows. Only the most recently begun resolution may commit its
// result; starting a new one cancels the previous one.
type Slot struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Token identifies one resolution within a Slot.
type Token struct {
	slot *Slot
	seq  uint64
	ctx  context.Context
}

// Begin supersedes any in-flight resolution on the slot and returns the
// context the new resolution must run under.
func (s *Slot) Begin(parent context.Context) (context.Context, *Token) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	s.cancel = cancel

	return ctx, &Token{slot: s, seq: s.seq, ctx: ctx}
}

// Current reports whether t is the latest token issued by its slot.
func (t *Token) Current() bool {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()
	return t.slot.seq == t.seq
}

// Cancelled reports whether t was superseded or its context was cancelled.
// An expired deadline is not a cancellation; that resolution still owns the
// slot and reports its timeout.
func (t *Token) Cancelled() bool {
	return !t.Current() || errors.Is(t.ctx.Err(), context.Canceled)
}

// Commit runs apply if t is still the latest, uncancelled token and reports
// whether it did. apply runs under the slot lock, so no newer resolution can
// begin until it returns; it must not call back into the slot.
func (t *Token) Commit(apply func()) bool {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()

	if t.slot.seq != t.seq || errors.Is(t.ctx.Err(), context.Canceled) {
		return false
	}
	apply()
	return true
}

// Release cancels t's context once its resolution is finished. It does not
// affect newer tokens.
func (t *Token) Release() {
	t.slot.mu.Lock()
	defer t.slot.mu.Unlock()

	if t.slot.seq == t.seq && t.slot.cancel != nil {
		t.slot.cancel()
		t.slot.cancel = nil
	}
}
