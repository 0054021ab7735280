package shell

import (
	"io"
	"reflect"
	"sync"
)

// sinkSet holds pipe sinks. Sinks wait in pending until the connection is
// established, then move to bound in registration order.
type sinkSet struct {
	mu      sync.Mutex
	pending []io.Writer
	bound   []io.Writer
	live    bool
}

func (s *sinkSet) add(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, w)
}

// remove drops the first occurrence of w from either list.
func (s *sinkSet) remove(w io.Writer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	if s.pending, ok = without(s.pending, w); ok {
		return true
	}
	s.bound, ok = without(s.bound, w)
	return ok
}

// activate marks the stream live and binds everything pending.
func (s *sinkSet) activate() []io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = true
	return s.bindLocked()
}

// bindPending binds sinks piped after activation. No-op before activate.
func (s *sinkSet) bindPending() []io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return nil
	}
	return s.bindLocked()
}

func (s *sinkSet) bindLocked() []io.Writer {
	moved := s.pending
	s.bound = append(s.bound, moved...)
	s.pending = nil
	return moved
}

func (s *sinkSet) snapshot() []io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]io.Writer, len(s.bound))
	copy(out, s.bound)
	return out
}

func (s *sinkSet) boundCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bound)
}

func without(list []io.Writer, w io.Writer) ([]io.Writer, bool) {
	for i, x := range list {
		if sameWriter(x, w) {
			out := make([]io.Writer, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...), true
		}
	}
	return list, false
}

// sameWriter compares writers without panicking on uncomparable dynamic types.
func sameWriter(a, b io.Writer) bool {
	ta := reflect.TypeOf(a)
	if ta == nil || ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
