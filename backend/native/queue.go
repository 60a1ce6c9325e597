//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/wgpu/hal"
)

// Queue wraps a HAL queue. HAL queues report progress as submission
// indices; fences map their values onto those indices.
type Queue struct {
	dev *Device
	raw hal.Queue

	mu        sync.Mutex
	submitted uint64
	lost      error
}

// Execute submits the command buffers of closed direct lists.
func (q *Queue) Execute(lists ...gpu.CommandList) error {
	bufs := make([]hal.CommandBuffer, 0, len(lists))
	owners := make([]*commandList, 0, len(lists))
	for _, cl := range lists {
		l, ok := cl.(*commandList)
		if !ok || l.dev != q.dev || l.typ != gpu.ListDirect {
			return fmt.Errorf("native: execute of a foreign or bundle list: %w", gpu.ErrInvalidState)
		}
		if !l.closed || l.cmd == nil {
			return fmt.Errorf("native: execute open command list: %w", gpu.ErrInvalidState)
		}
		bufs = append(bufs, l.cmd)
		owners = append(owners, l)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost != nil {
		return fmt.Errorf("native: execute: %w", q.lost)
	}
	if len(bufs) == 0 {
		return nil
	}
	idx, err := q.raw.Submit(bufs)
	if err != nil {
		q.lost = fmt.Errorf("%w: submit: %w", gpu.ErrDeviceLost, err)
		slogger().Warn("native: submit failed", "error", err)
		return q.lost
	}
	q.submitted = idx
	for _, l := range owners {
		l.submitted(idx)
	}
	return nil
}

// Signal marks fence to reach value when the last submission completes.
func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	nf, ok := f.(*fence)
	if !ok || nf.queue != q {
		return fmt.Errorf("native: signal foreign fence: %w", gpu.ErrInvalidState)
	}
	q.mu.Lock()
	idx, lost := q.submitted, q.lost
	q.mu.Unlock()
	if lost != nil {
		return fmt.Errorf("native: signal: %w", lost)
	}
	nf.mark(value, idx)
	return nil
}

// lastSubmitted returns the index of the latest submission.
func (q *Queue) lastSubmitted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.submitted
}

func (q *Queue) completed() uint64 {
	return q.raw.PollCompleted()
}

func (q *Queue) lostErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lost
}

type mark struct {
	value uint64
	index uint64
}

// fence completes a value once the queue has completed the submission
// that preceded its Signal.
type fence struct {
	queue *Queue

	mu        sync.Mutex
	completed uint64
	marks     []mark
	destroyed bool
}

func (f *fence) mark(value, index uint64) {
	f.mu.Lock()
	f.marks = append(f.marks, mark{value, index})
	f.mu.Unlock()
}

func (f *fence) CompletedValue() uint64 {
	done := f.queue.completed()
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.marks[:0]
	for _, m := range f.marks {
		if m.index <= done {
			f.completed = m.value
		} else {
			kept = append(kept, m)
		}
	}
	f.marks = kept
	return f.completed
}

// Polling backoff bounds for Done.
const (
	minPoll = 50 * time.Microsecond
	maxPoll = 2 * time.Millisecond
)

// Done polls the queue on a helper goroutine until the fence reaches value.
// The channel is also closed when the fence is destroyed or the device lost.
func (f *fence) Done(value uint64) (<-chan struct{}, error) {
	f.mu.Lock()
	destroyed := f.destroyed
	f.mu.Unlock()
	if destroyed {
		return nil, fmt.Errorf("native: wait on destroyed fence: %w: %w", gpu.ErrSyncObject, gpu.ErrDestroyed)
	}

	ch := make(chan struct{})
	if f.CompletedValue() >= value {
		close(ch)
		return ch, nil
	}
	go func() {
		defer close(ch)
		delay := minPoll
		for f.CompletedValue() < value {
			f.mu.Lock()
			destroyed := f.destroyed
			f.mu.Unlock()
			if destroyed || f.queue.lostErr() != nil {
				return
			}
			time.Sleep(delay)
			delay = min(delay*2, maxPoll)
		}
	}()
	return ch, nil
}

func (f *fence) Destroy() {
	f.mu.Lock()
	f.destroyed = true
	f.marks = nil
	f.mu.Unlock()
}
