package input

import (
	"fmt"
	"log"
)

func (e *Engine) Press(key string, held Holder) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	if _, exists := e.sessions[key]; exists {
		e.mu.Unlock()
		return false
	}
	s := &session{key: key, held: held}
	e.sessions[key] = s
	e.schedule(s)
	e.mu.Unlock()
	if e.opts.Debug {
		log.Printf("debug: input: press %s", key)
	}
	e.ProcessKey(key, "00", e.opts.RepeatWindow)
	return true
}

// schedule arms the next repeat tick of s. The caller holds e.mu.
func (e *Engine) schedule(s *session) {
	s.timer = e.opts.Clock.AfterFunc(e.opts.RepeatInterval, func() {
		e.tick(s)
	})
}

func (e *Engine) tick(s *session) {
	if !e.active(s) {
		return
	}
	// Query the input outside the lock; it may touch a bus.
	held := s.held.Held()
	e.mu.Lock()
	if e.sessions[s.key] != s {
		e.mu.Unlock()
		return
	}
	if !held {
		delete(e.sessions, s.key)
		e.mu.Unlock()
		if e.opts.Debug {
			log.Printf("debug: input: %s no longer held", s.key)
		}
		return
	}
	s.counter++
	code := fmt.Sprintf("%02x", s.counter)
	e.schedule(s)
	e.mu.Unlock()
	e.ProcessKey(s.key, code, e.opts.RepeatWindow)
}

func (e *Engine) active(s *session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[s.key] == s
}

func (e *Engine) Release(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		return
	}
	// The tick observes the removal even if Stop loses the race.
	s.timer.Stop()
	delete(e.sessions, key)
}

// Repeating reports whether key has a live repeat session.
func (e *Engine) Repeating(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[key]
	return ok
}

// Sessions returns the number of live repeat sessions.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}
