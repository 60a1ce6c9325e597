package reference

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framepipe/gpu"
)

type waiter struct {
	value uint64
	ch    chan struct{}
}

// fence completes on the queue timeline goroutine.
type fence struct {
	dev   *Device
	value atomic.Uint64

	mu        sync.Mutex
	waiters   []waiter
	destroyed bool
}

func (f *fence) CompletedValue() uint64 {
	return f.value.Load()
}

// Done returns a channel closed once the fence reaches value. After device
// loss every channel is closed; callers compare CompletedValue afterwards.
func (f *fence) Done(value uint64) (<-chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.destroyed {
		return nil, fmt.Errorf("reference: wait on destroyed fence: %w: %w", gpu.ErrSyncObject, gpu.ErrDestroyed)
	}
	ch := make(chan struct{})
	if f.value.Load() >= value || f.dev.queue.lostErr() != nil {
		close(ch)
		return ch, nil
	}
	f.waiters = append(f.waiters, waiter{value: value, ch: ch})
	return ch, nil
}

func (f *fence) Destroy() {
	f.mu.Lock()
	if f.destroyed {
		f.mu.Unlock()
		return
	}
	f.destroyed = true
	for _, w := range f.waiters {
		close(w.ch)
	}
	f.waiters = nil
	f.mu.Unlock()
	f.dev.forgetFence(f)
}

// set runs on the timeline.
func (f *fence) set(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value.Store(value)
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= value {
			close(w.ch)
		} else {
			kept = append(kept, w)
		}
	}
	f.waiters = kept
}

func (f *fence) abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.waiters {
		close(w.ch)
	}
	f.waiters = nil
}
