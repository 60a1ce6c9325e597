// Package upload copies static data into device-local resources.
//
// Uploads go through a staging buffer on the upload heap, a short-lived
// command list and a blocking fence wait. They are meant for startup only,
// never for per-frame data.
package upload

import (
	"fmt"
	"time"

	"github.com/gogpu/framepipe/gpu"
)

// Uploader submits one-shot copy work on a device queue.
type Uploader struct {
	dev   gpu.Device
	queue gpu.Queue
}

// New returns an Uploader for dev and queue.
func New(dev gpu.Device, queue gpu.Queue) *Uploader {
	return &Uploader{dev: dev, queue: queue}
}

// UploadStatic copies data into dst and transitions dst from
// gpu.StateCopyDest to finalState. dst must be in gpu.StateCopyDest.
// Texture data is tight (RowPitch*Height bytes); staging rows are padded to
// gpu.TexturePitchAlignment. UploadStatic blocks until the copy retired and
// the staging buffer has been released.
func (u *Uploader) UploadStatic(data []byte, dst gpu.Resource, finalState gpu.ResourceState) error {
	desc := dst.Desc()
	var (
		size  uint64
		fp    gpu.TextureFootprint
		isTex = desc.Dimension == gpu.DimensionTexture2D
	)
	if isTex {
		fp, size = gpu.Footprint(&desc)
		tight := gpu.SlicePitch(gpu.RowPitch(fp.Width, gpu.BytesPerPixel(desc.Format)), fp.Height)
		if tight == 0 || uint64(len(data)) != tight {
			return fmt.Errorf("upload: %q: %d bytes for a %d-byte texture: %w", desc.Label, len(data), tight, gpu.ErrOutOfRange)
		}
	} else {
		size = uint64(len(data))
		if size == 0 || size > desc.Width {
			return fmt.Errorf("upload: %q: %d bytes into %d-byte buffer: %w", desc.Label, len(data), desc.Width, gpu.ErrOutOfRange)
		}
	}

	staging, err := u.dev.CreateResource(gpu.BufferDesc(desc.Label+" staging", size, gpu.HeapUpload, gpu.StateGenericRead))
	if err != nil {
		return fmt.Errorf("upload: staging for %q: %w", desc.Label, err)
	}
	defer staging.Destroy()

	mem, err := staging.Map()
	if err != nil {
		return fmt.Errorf("upload: map staging: %w", err)
	}
	if isTex {
		copyRows(mem, int(fp.RowPitch), data, int(gpu.RowPitch(fp.Width, gpu.BytesPerPixel(desc.Format))), int(fp.Height))
	} else {
		copy(mem, data)
	}
	staging.Unmap()

	err = u.submit(desc.Label, func(l gpu.CommandList) {
		if isTex {
			l.CopyBufferToTexture(dst, staging, fp)
		} else {
			l.CopyBuffer(dst, 0, staging, 0, size)
		}
		if finalState != gpu.StateCopyDest {
			l.Barrier(gpu.Transition(dst, gpu.StateCopyDest, finalState))
		}
	})
	if err != nil {
		return err
	}
	slogger().Debug("upload: static data copied", "resource", desc.Label, "bytes", len(data), "state", finalState)
	return nil
}

// ReadBack copies src into a readback buffer and returns its contents.
// Texture rows are returned tight. src is transitioned to
// gpu.StateCopySource for the copy and back to currentState afterwards.
// ReadBack is a debug path: it blocks until the copy retired.
func (u *Uploader) ReadBack(src gpu.Resource, currentState gpu.ResourceState) ([]byte, error) {
	desc := src.Desc()
	var (
		size  uint64
		fp    gpu.TextureFootprint
		isTex = desc.Dimension == gpu.DimensionTexture2D
	)
	if isTex {
		fp, size = gpu.Footprint(&desc)
	} else {
		size = desc.Width
	}

	rb, err := u.dev.CreateResource(gpu.BufferDesc(desc.Label+" readback", size, gpu.HeapReadback, gpu.StateCopyDest))
	if err != nil {
		return nil, fmt.Errorf("upload: readback for %q: %w", desc.Label, err)
	}
	defer rb.Destroy()

	transition := desc.Heap == gpu.HeapDefault && currentState != gpu.StateCopySource
	err = u.submit(desc.Label+" readback", func(l gpu.CommandList) {
		if transition {
			l.Barrier(gpu.Transition(src, currentState, gpu.StateCopySource))
		}
		if isTex {
			l.CopyTextureToBuffer(rb, fp, src)
		} else {
			l.CopyBuffer(rb, 0, src, 0, size)
		}
		if transition {
			l.Barrier(gpu.Transition(src, gpu.StateCopySource, currentState))
		}
	})
	if err != nil {
		return nil, err
	}

	mem, err := rb.Map()
	if err != nil {
		return nil, fmt.Errorf("upload: map readback: %w", err)
	}
	defer rb.Unmap()
	if !isTex {
		return append([]byte(nil), mem[:size]...), nil
	}
	tight := int(gpu.RowPitch(fp.Width, gpu.BytesPerPixel(desc.Format)))
	out := make([]byte, tight*int(fp.Height))
	copyRows(out, tight, mem, int(fp.RowPitch), int(fp.Height))
	return out, nil
}

// copyRows copies rows of min(dstPitch, srcPitch) bytes between pitched images.
func copyRows(dst []byte, dstPitch int, src []byte, srcPitch, rows int) {
	n := min(dstPitch, srcPitch)
	for y := 0; y < rows; y++ {
		copy(dst[y*dstPitch:y*dstPitch+n], src[y*srcPitch:y*srcPitch+n])
	}
}

// submit records a one-shot list, executes it and blocks on a private
// fence until the GPU retired it.
func (u *Uploader) submit(label string, record func(gpu.CommandList)) error {
	alloc, err := u.dev.CreateCommandAllocator(gpu.ListDirect)
	if err != nil {
		return fmt.Errorf("upload: allocator: %w", err)
	}
	defer alloc.Destroy()
	list, err := u.dev.CreateCommandList(gpu.ListDirect, alloc, nil)
	if err != nil {
		return fmt.Errorf("upload: command list: %w", err)
	}
	defer list.Destroy()

	record(list)
	if err := list.Close(); err != nil {
		return fmt.Errorf("upload: record %q: %w", label, err)
	}

	fence, err := u.dev.CreateFence(0)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer fence.Destroy()

	if err := u.queue.Execute(list); err != nil {
		return fmt.Errorf("upload: execute %q: %w", label, err)
	}
	if err := u.queue.Signal(fence, 1); err != nil {
		return fmt.Errorf("upload: signal: %w: %w", gpu.ErrDeviceLost, err)
	}
	done, err := fence.Done(1)
	if err != nil {
		return fmt.Errorf("upload: wait: %w: %w", gpu.ErrDeviceLost, err)
	}
	start := time.Now()
	<-done
	if fence.CompletedValue() < 1 {
		return fmt.Errorf("upload: %q never retired: %w", label, gpu.ErrDeviceLost)
	}
	slogger().Debug("upload: copy retired", "label", label, "wait", time.Since(start))
	return nil
}
