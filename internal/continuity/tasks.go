package continuity

import "sync"

// taskGroup is a WaitGroup that launches its own goroutines, so callers
// cannot mismatch Add and Done.
type taskGroup struct {
	wg sync.WaitGroup
}

func (t *taskGroup) Go(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}

func (t *taskGroup) Wait() { t.wg.Wait() }
