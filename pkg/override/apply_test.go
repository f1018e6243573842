// Copyright 2024 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package override

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/units"
)

func str(s string) *string { return &s }

func num(n uint64) *units.Number {
	v := units.Number(n)
	return &v
}

func size(n uint64) *units.Size {
	v := units.Size(n)
	return &v
}

func flag(b bool) *Flag {
	v := Flag(b)
	return &v
}

// recordLogs redirects the global logger to a Recorder until the test ends.
func recordLogs(t *testing.T) *log.Recorder {
	t.Helper()
	r := &log.Recorder{Level: log.Info}
	old := log.SetTarget(r)
	t.Cleanup(func() { log.SetTarget(old) })
	return r
}

func newInfo() *nvgpu.NVA081_CTRL_VGPU_INFO {
	info := &nvgpu.NVA081_CTRL_VGPU_INFO{
		VGPUType:      55,
		MaxInstance:   4,
		FBLength:      0x3b000000,
		FBReservation: 0x5000000,
		ProfileSize:   0x40000000,
		CUDAEnabled:   0,
	}
	copy(info.VGPUName[:], "GRID P40-2Q")
	copy(info.VGPUClass[:], "Quadro")
	return info
}

func TestApplyAllFields(t *testing.T) {
	recordLogs(t)
	info := newInfo()
	r := &Record{
		GPUType:                num(63),
		CardName:               str("GRID RTX6000-4Q"),
		VGPUType:               str("NVS"),
		Features:               str("GRID-Virtual-WS,2.0;Quadro-Virtual-DWS,5.0"),
		MaxInstances:           num(6),
		NumDisplays:            num(2),
		DisplayWidth:           num(1920),
		DisplayHeight:          num(1080),
		MaxPixels:              num(1920 * 1080),
		FRLConfig:              num(60),
		MIGInstanceSize:        num(3),
		PCIID:                  num(0x1e3012ba),
		PCIDeviceID:            num(0x1e30),
		EncoderCapacity:        num(100),
		Bar1Length:             num(0x100),
		CUDAEnabled:            flag(true),
		ECCSupported:           flag(false),
		MultiVGPUSupported:     flag(true),
		FRLEnabled:             flag(true),
		Framebuffer:            size(0xec000000),
		MappableVideoSize:      size(0x400000),
		FramebufferReservation: size(0x14000000),
		AdapterName:            str("Quadro RTX 6000"),
		ShortGPUName:           str("TU102-A"),
		LicenseType:            str("NVIDIA RTX Virtual Workstation"),
	}
	if err := Apply(info, "nvidia-55", r); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	f := info.ConfigFields()
	for _, c := range []struct {
		name      string
		got, want uint64
	}{
		{"vgpu_type", uint64(info.VGPUType), 63},
		{"max_instance", uint64(info.MaxInstance), 6},
		{"num_heads", uint64(info.NumHeads), 2},
		{"max_resolution_x", uint64(info.MaxResolutionX), 1920},
		{"max_resolution_y", uint64(info.MaxResolutionY), 1080},
		{"max_pixels", uint64(info.MaxPixels), 1920 * 1080},
		{"frl_config", uint64(info.FRLConfig), 60},
		{"gpu_instance_size", uint64(info.GPUInstanceSize), 3},
		{"vdev_id", info.VdevID, 0x1e3012ba},
		{"pdev_id", info.PdevID, 0x1e30},
		{"encoder_capacity", uint64(info.EncoderCapacity), 100},
		{"bar1_length", info.Bar1Length, 0x100},
		{"cuda_enabled", uint64(info.CUDAEnabled), 1},
		{"ecc_supported", uint64(info.ECCSupported), 0},
		{"multi_vgpu_supported", uint64(info.MultiVGPUSupported), 1},
		{"frl_enable", uint64(info.FRLEnable), 1},
		{"fb_length", info.FBLength, 0xec000000},
		{"mappable_video_size", info.MappableVideoSize, 0x400000},
		{"fb_reservation", info.FBReservation, 0x14000000},
		{"profile_size", info.ProfileSize, 0x100000000},
	} {
		if c.got != c.want {
			t.Errorf("%s = %#x, want %#x", c.name, c.got, c.want)
		}
	}
	for _, c := range []struct {
		name, got, want string
	}{
		{"vgpu_name", nvgpu.CString(f.VGPUName), "GRID RTX6000-4Q"},
		{"vgpu_class", nvgpu.CString(f.VGPUClass), "NVS"},
		{"license", nvgpu.CString(f.License), "GRID-Virtual-WS,2.0;Quadro-Virtual-DWS,5.0"},
		{"adapter_name", nvgpu.CString(f.AdapterName), "Quadro RTX 6000"},
		{"adapter_name_unicode", nvgpu.WideString(f.AdapterNameUnicode), "Quadro RTX 6000"},
		{"short_gpu_name_string", nvgpu.CString(f.ShortGPUNameString), "TU102-A"},
		{"licensed_product_name", nvgpu.CString(f.LicensedProductName), "NVIDIA RTX Virtual Workstation"},
	} {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}

func TestApplyZeroFillsText(t *testing.T) {
	recordLogs(t)
	info := newInfo()
	if err := Apply(info, "nvidia-55", &Record{CardName: str("A")}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := make([]byte, len(info.VGPUName))
	want[0] = 'A'
	if diff := cmp.Diff(want, info.VGPUName[:]); diff != "" {
		t.Errorf("vgpu_name not zero filled (-want +got):\n%s", diff)
	}
}

func TestApplyTextBoundary(t *testing.T) {
	recordLogs(t)
	capacity := len(nvgpu.NVA081_CTRL_VGPU_INFO{}.VGPUName)

	info := newInfo()
	fits := strings.Repeat("x", capacity-1)
	if err := Apply(info, "nvidia-55", &Record{CardName: str(fits)}); err != nil {
		t.Fatalf("Apply(%d bytes) failed: %v", capacity-1, err)
	}
	if got := nvgpu.CString(info.VGPUName[:]); got != fits {
		t.Errorf("vgpu_name = %q, want %q", got, fits)
	}
	if info.VGPUName[capacity-1] != 0 {
		t.Errorf("vgpu_name is not NUL terminated")
	}
}

func TestApplyTooLong(t *testing.T) {
	logs := recordLogs(t)
	capacity := len(nvgpu.NVA081_CTRL_VGPU_INFO{}.VGPUName)
	tooLong := strings.Repeat("y", capacity)

	info := newInfo()
	err := Apply(info, "nvidia-55", &Record{
		GPUType:      num(63),
		CardName:     str(tooLong),
		MaxInstances: num(12),
	})
	if !errors.Is(err, ErrValueTooLong) {
		t.Fatalf("Apply returned %v, want ErrValueTooLong", err)
	}
	var tle *ValueTooLongError
	if !errors.As(err, &tle) {
		t.Fatalf("Apply returned %T, want *ValueTooLongError", err)
	}
	if tle.Field != "card_name" || tle.Max != capacity-1 {
		t.Errorf("ValueTooLongError = %+v, want field card_name, max %d", tle, capacity-1)
	}

	// Fields before the failure stay patched, later ones are untouched.
	if info.VGPUType != 63 {
		t.Errorf("vgpu_type = %d, want 63", info.VGPUType)
	}
	if got := nvgpu.CString(info.VGPUName[:]); got != "GRID P40-2Q" {
		t.Errorf("vgpu_name = %q, want it unchanged", got)
	}
	if info.MaxInstance != 4 {
		t.Errorf("max_instance = %d, want it unchanged", info.MaxInstance)
	}

	want := []string{
		"I Patching nvidia-55/gpu_type: 55 -> 63",
		"E Patching nvidia-55/card_name: value '" + tooLong + "' is too long",
	}
	if diff := cmp.Diff(want, logs.Lines()); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyWideTooLong(t *testing.T) {
	recordLogs(t)
	var cfg nvgpu.VgpuConfig
	long := strings.Repeat("z", len(cfg.AdapterName))
	err := Apply(&cfg, "nvidia-11", &Record{AdapterName: str(long)})
	var tle *ValueTooLongError
	if !errors.As(err, &tle) || tle.Field != "adapter_name" {
		t.Fatalf("Apply returned %v, want adapter_name ValueTooLongError", err)
	}
}

func TestApplyLogOrder(t *testing.T) {
	logs := recordLogs(t)
	info := newInfo()
	err := Apply(info, "nvidia-55", &Record{
		LicenseType:  str("GRID"),
		CUDAEnabled:  flag(true),
		Framebuffer:  size(0x40000000),
		CardName:     str("P40-8Q"),
		MaxInstances: num(3),
		GPUType:      num(56),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	want := []string{
		"I Patching nvidia-55/gpu_type: 55 -> 56",
		"I Patching nvidia-55/card_name: 'GRID P40-2Q' -> 'P40-8Q'",
		"I Patching nvidia-55/max_instances: 4 -> 3",
		"I Patching nvidia-55/cuda_enabled: 0 -> 1",
		"I Patching nvidia-55/framebuffer: 989855744 -> 1073741824",
		"I Patching nvidia-55/profile_size: 1073741824 -> 1157627904",
		"I Patching nvidia-55/license_type: '' -> 'GRID'",
	}
	if diff := cmp.Diff(want, logs.Lines()); diff != "" {
		t.Errorf("log mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyIdempotent(t *testing.T) {
	recordLogs(t)
	r := &Record{
		CardName:               str("GRID P40-24Q"),
		Framebuffer:            size(0x5c0000000),
		FramebufferReservation: size(0x20000000),
		AdapterName:            str("Tesla P40"),
		ECCSupported:           flag(true),
	}
	once := newInfo()
	if err := Apply(once, "nvidia-55", r); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	twice := newInfo()
	for i := 0; i < 2; i++ {
		if err := Apply(twice, "nvidia-55", r); err != nil {
			t.Fatalf("Apply #%d failed: %v", i, err)
		}
	}
	if *once != *twice {
		t.Errorf("applying twice differs from applying once:\n%s\n%s", once.ConfigFields(), twice.ConfigFields())
	}
}

func TestApplyLegacyHasNoProfileSize(t *testing.T) {
	logs := recordLogs(t)
	cfg := nvgpu.VgpuConfig{VGPUType: 11}
	if err := Apply(&cfg, "nvidia-11", &Record{Framebuffer: size(1 << 30)}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if cfg.FBLength != 1<<30 {
		t.Errorf("fb_length = %#x, want %#x", cfg.FBLength, 1<<30)
	}
	for _, l := range logs.Lines() {
		if strings.Contains(l, "profile_size") {
			t.Errorf("profile_size patched on a layout without it: %q", l)
		}
	}
}

func TestApplyWideString(t *testing.T) {
	recordLogs(t)
	var p nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS
	for i := range p.AdapterNameUnicode {
		p.AdapterNameUnicode[i] = 0xffff
	}
	const name = "Tesla T4 µ\U0001F600"
	if err := Apply(&p, "nvidia-222", &Record{AdapterName: str(name)}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got := nvgpu.WideString(p.AdapterNameUnicode[:]); got != name {
		t.Errorf("adapter_name_unicode = %q, want %q", got, name)
	}
	if got := nvgpu.CString(p.AdapterName[:]); got != name {
		t.Errorf("adapter_name = %q, want %q", got, name)
	}
	// "Tesla T4 " + U+00B5 + a surrogate pair.
	n := len("Tesla T4 ") + 1 + 2
	for i, w := range p.AdapterNameUnicode[n:] {
		if w != 0 {
			t.Fatalf("adapter_name_unicode[%d] = %#x, want 0", n+i, w)
		}
	}
}

func TestApplyRejectsOversizedNumber(t *testing.T) {
	recordLogs(t)
	info := newInfo()
	if err := Apply(info, "nvidia-55", &Record{MaxInstances: num(1 << 32)}); err == nil {
		t.Errorf("Apply accepted a 33-bit max_instances")
	}
	if info.MaxInstance != 4 {
		t.Errorf("max_instance = %d, want it unchanged", info.MaxInstance)
	}
}
