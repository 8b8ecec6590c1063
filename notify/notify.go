// Package notify carries user-visible reports of recoverable hardware
// and configuration errors out of the input pipeline.
package notify

import (
	"fmt"
	"log"
)

// Sink shows a short message to the user, for example as an
// on-screen transient notification.
type Sink interface {
	Show(text string)
}

// Func adapts a function to a Sink.
type Func func(text string)

func (f Func) Show(text string) {
	f(text)
}

// Report logs the message and forwards it to s, if any.
func Report(s Sink, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Print(msg)
	if s != nil {
		s.Show(msg)
	}
}

type multi []Sink

// Multi returns a Sink that shows every message on all non-nil sinks.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}

func (m multi) Show(text string) {
	for _, s := range m {
		s.Show(text)
	}
}
