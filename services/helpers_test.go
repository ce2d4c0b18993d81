package services

import (
	"testing"
	"time"
)

func TestMatchLocksSerializeSameID(t *testing.T) {
	locks := NewMatchLocks()
	unlock := locks.Lock(1)

	acquired := make(chan struct{})
	go func() {
		u := locks.Lock(1)
		u()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while already held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock never released")
	}
}

func TestMatchLocksIndependentIDs(t *testing.T) {
	locks := NewMatchLocks()
	unlock := locks.Lock(1)
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := locks.Lock(2)
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different matches must not contend")
	}
}
