package service

import "sync"

// Locks serializes mutating operations per card number. Every operation that
// changes an account holds its card lock across validate, mutate, persist and
// ledger append, so two concurrent operations can never both validate against
// a stale balance. The ledger and admin services must share one Locks
// instance.
type Locks struct {
	mu    sync.Mutex
	cards map[string]*sync.Mutex
}

// NewLocks creates an empty lock table
func NewLocks() *Locks {
	return &Locks{cards: make(map[string]*sync.Mutex)}
}

func (l *Locks) get(cardNumber string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.cards[cardNumber]
	if !ok {
		m = &sync.Mutex{}
		l.cards[cardNumber] = m
	}
	return m
}

// Lock acquires the card's lock and returns the unlock function
func (l *Locks) Lock(cardNumber string) func() {
	m := l.get(cardNumber)
	m.Lock()
	return m.Unlock
}

// LockPair acquires both cards' locks in lexicographic order, so two
// concurrent transfers between the same pair cannot deadlock
func (l *Locks) LockPair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	first, second := l.get(a), l.get(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
