// Package gpu defines the device model shared by every framepipe backend.
//
// The model follows explicit graphics APIs: an Adapter opens a Device and a
// single direct Queue; resources carry an explicit ResourceState that must be
// transitioned with barriers recorded into a CommandList; command lists draw
// their backing memory from a CommandAllocator that may only be reset once
// the GPU has retired everything recorded from it; and a Fence is a
// monotonically increasing counter signaled from the GPU timeline and awaited
// from the CPU.
//
// Backends live under framepipe/backend and register themselves with the
// backend registry:
//
//   - backend/reference: pure Go device with an asynchronous timeline
//     goroutine, used as the software adapter and in tests
//   - backend/native: hardware device on top of gogpu/wgpu/hal
//
// Every object is exclusively owned by whoever created it and must be
// destroyed in reverse order of creation, after the queue has been drained.
package gpu
