package station

import (
	"sync"

	"game-station/internal/watchdog"
)

type event interface{}

type (
	expiryEvent   struct{ watchdog.Expiry }
	retryEvent    struct{ epoch uint64 }
	errorEvent    struct{ description string }
	scoreEvent    struct{ score int }
	finishedEvent struct{}
)

// mailbox is an unbounded FIFO feeding the controller loop. push never blocks, so rules
// may raise notifications while the controller lock is held.
type mailbox struct {
	mu     sync.Mutex
	queue  []event
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(ev event) {
	m.mu.Lock()
	m.queue = append(m.queue, ev)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) ready() <-chan struct{} { return m.signal }

// notifier adapts the mailbox to the Notifier handed to rules.
type notifier struct{ events *mailbox }

func (n notifier) ErrorOccurred(description string) { n.events.push(errorEvent{description}) }
func (n notifier) ScoreChanged(score int)           { n.events.push(scoreEvent{score}) }
func (n notifier) SessionFinished()                 { n.events.push(finishedEvent{}) }
