package locker_test

import (
	"sync"
	"testing"

	"github.com/altbank/corebank/internal/infra/locker"
)

func TestDoSerializesSameKey(t *testing.T) {
	k := locker.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = k.Do("acct-1", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("expected 100 increments, got %d", counter)
	}
}

func TestDifferentKeysDoNotBlock(t *testing.T) {
	k := locker.New()

	k.Lock("acct-1")
	defer k.Unlock("acct-1")

	done := make(chan struct{})
	go func() {
		k.Lock("acct-2")
		k.Unlock("acct-2")
		close(done)
	}()

	<-done
}

func TestDoPropagatesError(t *testing.T) {
	k := locker.New()

	want := "boom"
	err := k.Do("acct-1", func() error { return errString(want) })
	if err == nil || err.Error() != want {
		t.Errorf("expected %q, got %v", want, err)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
