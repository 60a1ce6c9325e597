package framepipe

import (
	"errors"
	"testing"

	"github.com/gogpu/framepipe/backend"
	"github.com/gogpu/framepipe/backend/native"
	"github.com/gogpu/framepipe/backend/reference"
	"github.com/gogpu/framepipe/gpu"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// referenceOnly hides the hardware backend so selection is deterministic.
func referenceOnly(t *testing.T) {
	t.Helper()
	backend.Unregister(backend.BackendNative)
	t.Cleanup(func() {
		backend.Register(backend.BackendNative, func() backend.Backend {
			return native.NewBackend()
		})
	})
}

func TestOpenDeviceSoftware(t *testing.T) {
	referenceOnly(t)
	for _, preferHardware := range []bool{false, true} {
		dc, err := OpenDevice(preferHardware, gpu.FeatureLevel11_0)
		if err != nil {
			t.Fatalf("OpenDevice(%v): %v", preferHardware, err)
		}
		if dc.Info().Name != reference.AdapterName {
			t.Errorf("adapter = %q", dc.Info().Name)
		}
		if dc.Fallback() != preferHardware {
			t.Errorf("Fallback() = %v with preferHardware %v", dc.Fallback(), preferHardware)
		}
		dev, queue := dc.GPU()
		if dev == nil || queue == nil {
			t.Fatal("nil device or queue")
		}
		if dc.Device() != dev || dc.Queue() != queue {
			t.Error("DeviceProvider accessors disagree with GPU()")
		}
		dc.Close()
		dc.Close()
	}
}

func TestOpenDeviceNoAdapter(t *testing.T) {
	referenceOnly(t)
	_, err := OpenDevice(true, gpu.FeatureLevel12_0)
	if !errors.Is(err, gpu.ErrDeviceCreation) || !errors.Is(err, gpu.ErrNoAdapter) {
		t.Errorf("OpenDevice error = %v, want ErrDeviceCreation wrapping ErrNoAdapter", err)
	}
}

func TestDeviceProvider(t *testing.T) {
	dc, err := openAdapter(reference.NewAdapter(), gpu.FeatureLevel11_0)
	if err != nil {
		t.Fatalf("openAdapter: %v", err)
	}
	defer dc.Close()

	var provider gpucontext.DeviceProvider = dc
	if got := provider.AdapterInfo(); got.Type != gpucontext.AdapterTypeSoftware || got.Name != reference.AdapterName {
		t.Errorf("AdapterInfo() = %+v", got)
	}
	if provider.SurfaceFormat() != gputypes.TextureFormatRGBA8Unorm {
		t.Errorf("SurfaceFormat() = %v", provider.SurfaceFormat())
	}
	if _, ok := provider.Adapter().(*reference.Adapter); !ok {
		t.Errorf("Adapter() = %T", provider.Adapter())
	}
}

func TestAdapterType(t *testing.T) {
	tests := []struct {
		in   gputypes.DeviceType
		want gpucontext.AdapterType
	}{
		{gputypes.DeviceTypeDiscreteGPU, gpucontext.AdapterTypeDiscrete},
		{gputypes.DeviceTypeIntegratedGPU, gpucontext.AdapterTypeIntegrated},
		{gputypes.DeviceTypeCPU, gpucontext.AdapterTypeSoftware},
		{gputypes.DeviceTypeVirtualGPU, gpucontext.AdapterTypeUnknown},
		{gputypes.DeviceTypeOther, gpucontext.AdapterTypeUnknown},
	}
	for _, tt := range tests {
		if got := adapterType(tt.in); got != tt.want {
			t.Errorf("adapterType(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
