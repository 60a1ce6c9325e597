// Package frame records per-frame command lists and paces the CPU against
// the GPU timeline with a fence.
//
// Each buffered frame slot owns a command allocator and the fence value
// its last submission signals. A slot is recorded into only after the
// fence reached that value, so the CPU and the GPU never own the same slot
// at the same time.
package frame

import (
	"fmt"
	"time"

	"github.com/gogpu/framepipe/gpu"
)

// Policy selects how the Synchronizer paces the CPU.
type Policy uint8

const (
	// PolicyOverlapped keeps up to FrameCount-1 frames in flight and waits
	// only when the next slot's previous work has not retired.
	PolicyOverlapped Policy = iota

	// PolicyBlocking waits for every frame to retire before the next one
	// is recorded.
	PolicyBlocking
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyOverlapped:
		return "overlapped"
	case PolicyBlocking:
		return "blocking"
	default:
		return fmt.Sprintf("Policy(%d)", p)
	}
}

// Stats are counters of synchronizer activity.
type Stats struct {
	// Frames is the number of completed Advance calls.
	Frames uint64

	// Waits is the number of times the CPU blocked on the fence.
	Waits uint64

	// WaitTime is the total time spent blocked.
	WaitTime time.Duration
}

// Synchronizer tracks one fence target per frame slot.
//
// Synchronizer is not safe for concurrent use; one goroutine records and
// submits.
type Synchronizer struct {
	queue   gpu.Queue
	fence   gpu.Fence
	policy  Policy
	next    func() uint32
	targets []uint64
	value   uint64
	current uint32
	pending bool
	stats   Stats
	err     error
}

// NewSynchronizer creates a fence and frameCount slot targets. next returns
// the slot to record after a present, normally the swap chain's current
// back buffer index; nil cycles through the slots in order.
func NewSynchronizer(dev gpu.Device, queue gpu.Queue, frameCount uint32, policy Policy, next func() uint32) (*Synchronizer, error) {
	if frameCount == 0 {
		return nil, fmt.Errorf("frame: zero frame slots: %w", gpu.ErrOutOfRange)
	}
	f, err := dev.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("frame: create fence: %w", err)
	}
	s := &Synchronizer{
		queue:   queue,
		fence:   f,
		policy:  policy,
		next:    next,
		targets: make([]uint64, frameCount),
	}
	if next != nil {
		s.current = next() % frameCount
	}
	return s, nil
}

// FrameCount returns the number of slots.
func (s *Synchronizer) FrameCount() uint32 { return uint32(len(s.targets)) }

// Policy returns the pacing policy.
func (s *Synchronizer) Policy() Policy { return s.policy }

// Current returns the slot safe to record into.
func (s *Synchronizer) Current() uint32 { return s.current }

// Completed returns the fence's completed value.
func (s *Synchronizer) Completed() uint64 { return s.fence.CompletedValue() }

// Target returns the fence value slot's last submission signals.
func (s *Synchronizer) Target(slot uint32) (uint64, error) {
	if slot >= uint32(len(s.targets)) {
		return 0, fmt.Errorf("frame: slot %d of %d: %w", slot, len(s.targets), gpu.ErrOutOfRange)
	}
	return s.targets[slot], nil
}

// Retired reports whether the GPU finished the last work submitted for
// slot. Out-of-range slots are never retired.
func (s *Synchronizer) Retired(slot uint32) bool {
	if slot >= uint32(len(s.targets)) {
		return false
	}
	return s.fence.CompletedValue() >= s.targets[slot]
}

// Stats returns the activity counters.
func (s *Synchronizer) Stats() Stats { return s.stats }

// Err returns the device-lost error that stopped the synchronizer, if any.
func (s *Synchronizer) Err() error { return s.err }

func (s *Synchronizer) lost(err error) error {
	s.err = fmt.Errorf("frame: %w: %w", gpu.ErrDeviceLost, err)
	slogger().Warn("frame: device lost", "error", err)
	return s.err
}

// Submit executes the lists recorded for the current slot.
func (s *Synchronizer) Submit(lists ...gpu.CommandList) error {
	if s.err != nil {
		return s.err
	}
	if err := s.queue.Execute(lists...); err != nil {
		return s.lost(err)
	}
	s.pending = true
	return nil
}

// signal queues the next fence value and makes it the current slot's target.
func (s *Synchronizer) signal() error {
	v := s.value + 1
	if err := s.queue.Signal(s.fence, v); err != nil {
		return s.lost(err)
	}
	s.value = v
	s.targets[s.current] = v
	s.pending = false
	return nil
}

// wait blocks until the fence reaches v.
func (s *Synchronizer) wait(v uint64) error {
	if s.fence.CompletedValue() >= v {
		return nil
	}
	done, err := s.fence.Done(v)
	if err != nil {
		return s.lost(err)
	}
	start := time.Now()
	<-done
	s.stats.Waits++
	s.stats.WaitTime += time.Since(start)
	if got := s.fence.CompletedValue(); got < v {
		return s.lost(fmt.Errorf("fence stopped at %d waiting for %d", got, v))
	}
	return nil
}

// Advance ends the current frame: it signals the fence, selects the next
// slot and returns it once it is safe to record into. With
// PolicyOverlapped it blocks only while that slot's previous work is in
// flight; with PolicyBlocking it always waits for the frame just signaled.
func (s *Synchronizer) Advance() (uint32, error) {
	if s.err != nil {
		return 0, s.err
	}
	if err := s.signal(); err != nil {
		return 0, err
	}
	signaled := s.value

	if s.policy == PolicyBlocking {
		if err := s.wait(signaled); err != nil {
			return 0, err
		}
	}

	if s.next != nil {
		s.current = s.next() % uint32(len(s.targets))
	} else {
		s.current = (s.current + 1) % uint32(len(s.targets))
	}
	if err := s.wait(s.targets[s.current]); err != nil {
		return 0, err
	}
	s.stats.Frames++
	slogger().Debug("frame: advanced",
		"signaled", signaled,
		"slot", s.current,
		"target", s.targets[s.current],
		"completed", s.fence.CompletedValue())
	return s.current, nil
}

// Drain blocks until every slot's last target is reached and returns the
// fence's completed value. Work submitted since the last signal gets a
// final signal first. A second Drain neither signals nor blocks.
func (s *Synchronizer) Drain() (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.pending {
		if err := s.signal(); err != nil {
			return 0, err
		}
	}
	for _, t := range s.targets {
		if err := s.wait(t); err != nil {
			return 0, err
		}
	}
	return s.fence.CompletedValue(), nil
}

// Destroy releases the fence. Call Drain first.
func (s *Synchronizer) Destroy() {
	if s.fence != nil {
		s.fence.Destroy()
		s.fence = nil
	}
}
