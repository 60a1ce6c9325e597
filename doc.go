// Package framepipe renders a triangle through an explicit per-frame GPU
// pipeline: a swap chain of back buffers with render-target views, descriptor
// heaps, command lists recorded per frame slot and a fence that paces the CPU
// against the GPU timeline.
//
// # Overview
//
// The host owns the window and drives the loop. framepipe owns everything
// between the window handle and the presented image:
//
//	win := framepipe.NewHeadlessWindow(1280, 720)
//	p := framepipe.New(win, framepipe.WithFrameCount(3))
//	err := framepipe.Run(ctx, p, framepipe.RunOptions{Frames: 600})
//
// Run calls OnInit once, then OnUpdate and OnRender every iteration, and
// OnDestroy exactly once when the loop ends.
//
// # Frame pacing
//
// Each buffered frame slot owns a command allocator and the fence value its
// last submission signals. With [PolicyOverlapped] (the default) the CPU
// records frame N+1 while the GPU still executes frame N and blocks only
// when the next slot is still in flight. [PolicyBlocking] waits for every
// frame before recording the next one.
//
// # Devices
//
// [OpenDevice] selects an adapter from the registered backends: the
// hardware backend built on gogpu/wgpu HAL, and the CPU reference device
// used as the software fallback. Startup failures (no adapter, shader
// compilation, root signature, fence creation) are fatal. Failures while
// rendering wrap [gpu.ErrDeviceLost] and leave the pipeline in a failed
// state that returns the same error from every later render.
//
// # Logging
//
// framepipe is silent by default. Call [SetLogger] to receive structured
// log records from the pipeline and every sub-package.
package framepipe
