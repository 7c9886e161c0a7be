package testutil

import (
	"fmt"
	"sync"
)

// EventLog is a thread-safe, ordered record of barrier events shared by
// several RecordingListeners.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

// NewEventLog creates an empty log.
func NewEventLog() *EventLog {
	return &EventLog{}
}

func (l *EventLog) append(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

// Events returns a copy of the recorded events in order.
func (l *EventLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// RecordingListener is a clock listener that records every barrier call.
//
// Events are written as "<name>:ready" and "<name>:tick" so tests can
// assert that no listener is notified before every listener was ready.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingListener struct {
	name string
	log  *EventLog

	mu     sync.Mutex
	ready  int
	ticked int
}

// NewRecordingListener creates a listener that writes to log. A nil log
// gets a private one.
func NewRecordingListener(name string, log *EventLog) *RecordingListener {
	if log == nil {
		log = NewEventLog()
	}
	return &RecordingListener{name: name, log: log}
}

// WaitUntilReady records readiness and returns immediately.
func (r *RecordingListener) WaitUntilReady() {
	r.mu.Lock()
	r.ready++
	r.mu.Unlock()
	r.log.append(fmt.Sprintf("%s:ready", r.name))
}

// OnTick records the notification.
func (r *RecordingListener) OnTick() {
	r.mu.Lock()
	r.ticked++
	r.mu.Unlock()
	r.log.append(fmt.Sprintf("%s:tick", r.name))
}

// Calls returns how many times WaitUntilReady and OnTick were invoked.
func (r *RecordingListener) Calls() (ready, ticked int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready, r.ticked
}

// Log returns the shared event log.
func (r *RecordingListener) Log() *EventLog {
	return r.log
}
