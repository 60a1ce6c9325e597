package reference

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/framepipe/gpu"
)

type itemKind uint8

const (
	itemExecute itemKind = iota
	itemSignal
	itemPresent
)

type item struct {
	kind  itemKind
	seq   uint64
	lists [][]op
	fence *fence
	value uint64
	chain *swapChain
	index uint32
}

// Queue executes submitted work in FIFO order on its own goroutine.
type Queue struct {
	dev *Device

	mu        sync.Mutex
	cond      *sync.Cond
	items     []item
	paused    bool
	budget    int
	closed    bool
	submitted uint64
	lost      error

	retired atomic.Uint64
	done    chan struct{}
}

func newQueue(d *Device) *Queue {
	q := &Queue{dev: d, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Execute submits closed direct command lists.
func (q *Queue) Execute(lists ...gpu.CommandList) error {
	recorded := make([][]op, 0, len(lists))
	var owners []*commandList
	for _, cl := range lists {
		l, ok := cl.(*commandList)
		if !ok || l.dev != q.dev {
			return fmt.Errorf("reference: execute foreign command list: %w", gpu.ErrInvalidState)
		}
		if l.typ != gpu.ListDirect {
			return fmt.Errorf("reference: bundles cannot be executed directly: %w", gpu.ErrInvalidState)
		}
		if !l.closed {
			return fmt.Errorf("reference: execute open command list: %w", gpu.ErrInvalidState)
		}
		if l.err != nil {
			return fmt.Errorf("reference: execute failed command list: %w", l.err)
		}
		recorded = append(recorded, l.ops)
		owners = append(owners, l)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost != nil {
		return fmt.Errorf("reference: execute: %w", q.lost)
	}
	if q.closed {
		return fmt.Errorf("reference: execute: %w", gpu.ErrDestroyed)
	}
	q.submitted++
	seq := q.submitted
	for _, l := range owners {
		l.markSubmitted(seq)
	}
	q.push(item{kind: itemExecute, seq: seq, lists: recorded})
	return nil
}

// Signal queues a fence update behind all previously submitted work.
func (q *Queue) Signal(f gpu.Fence, value uint64) error {
	rf, ok := f.(*fence)
	if !ok || rf.dev != q.dev {
		return fmt.Errorf("reference: signal foreign fence: %w", gpu.ErrInvalidState)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.lost != nil {
		return fmt.Errorf("reference: signal: %w", q.lost)
	}
	if q.closed {
		return fmt.Errorf("reference: signal: %w", gpu.ErrDestroyed)
	}
	q.push(item{kind: itemSignal, seq: q.submitted, fence: rf, value: value})
	return nil
}

// Pause holds the timeline after the item currently executing.
// Submissions keep queueing until Resume.
func (q *Queue) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()
}

// Step lets a paused timeline run n more items.
func (q *Queue) Step(n int) {
	q.mu.Lock()
	q.budget += n
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Resume lets a paused timeline continue.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.paused = false
	q.budget = 0
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Pending returns the number of queued items not yet started.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Lose simulates device removal. All later submissions fail and every
// fence waiter is released.
func (q *Queue) Lose(reason string) {
	q.fail(fmt.Errorf("%w: %s", gpu.ErrDeviceLost, reason))
}

// push must be called with q.mu held.
func (q *Queue) push(it item) {
	q.items = append(q.items, it)
	q.cond.Signal()
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for !q.closed && (len(q.items) == 0 || (q.paused && q.budget == 0)) {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		if q.paused {
			q.budget--
		}
		it := q.items[0]
		q.items = q.items[1:]
		lost := q.lost != nil
		q.mu.Unlock()

		if lost {
			continue
		}
		if err := q.exec(it); err != nil {
			q.fail(err)
			continue
		}
		if it.kind == itemExecute {
			q.retired.Store(it.seq)
		}
	}
}

func (q *Queue) exec(it item) error {
	switch it.kind {
	case itemExecute:
		for _, ops := range it.lists {
			st := newExecState(q.dev)
			for _, o := range ops {
				if err := o(st); err != nil {
					return err
				}
			}
		}
	case itemSignal:
		it.fence.set(it.value)
		slogger().Debug("reference: fence signaled", "value", it.value)
	case itemPresent:
		return it.chain.present(it.index)
	}
	return nil
}

func (q *Queue) fail(err error) {
	q.mu.Lock()
	if q.lost != nil {
		q.mu.Unlock()
		return
	}
	if !errors.Is(err, gpu.ErrDeviceLost) {
		err = fmt.Errorf("%w: %w", gpu.ErrDeviceLost, err)
	}
	q.lost = err
	q.items = nil
	q.mu.Unlock()

	slogger().Warn("reference: device lost", "error", err)
	q.dev.abandonFences()
}

func (q *Queue) lostErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lost
}

// retiredSeq returns the sequence number of the last completed Execute.
func (q *Queue) retiredSeq() uint64 {
	return q.retired.Load()
}

func (q *Queue) stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	<-q.done
}
