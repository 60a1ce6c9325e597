// Package reference implements the framepipe device model on the CPU.
//
// The reference device is the software adapter framepipe falls back to when
// no hardware adapter reaches the required feature level, and the device
// tests run against. It keeps the asynchronous contract of real hardware:
// Queue.Execute, Queue.Signal and SwapChain.Present only enqueue work, and a
// dedicated timeline goroutine executes it strictly in submission order.
// Fences complete on that goroutine, so CPU code observes the same
// ownership rules it must follow on a GPU.
//
// Test hooks:
//
//	q := queue.(*reference.Queue)
//	q.Pause()  // hold the timeline, submissions keep queueing
//	q.Resume()
//	q.Lose("reason") // simulate device removal
//
// WithDebugLayer turns misuse that hardware would silently accept into
// errors: barriers whose Before state is wrong, allocator resets while
// lists are in flight, presents of back buffers outside the present state.
//
// Draws are split into row bands rasterized on a worker pool owned by the
// device (WithWorkers). The timeline goroutine waits for every band, so
// ordering is unchanged.
package reference
