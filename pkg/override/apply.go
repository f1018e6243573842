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
	"fmt"
	"unicode/utf16"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/units"
)

// ErrValueTooLong is wrapped by every ValueTooLongError.
var ErrValueTooLong = errors.New("override value too long")

// ValueTooLongError is returned when a text override does not fit its field
// together with the NUL terminator.
type ValueTooLongError struct {
	// Name is the profile name the override was applied to.
	Name string
	// Field is the override key.
	Field string
	// Value is the rejected value.
	Value string
	// Max is the longest accepted length, in bytes or UTF-16 code units.
	Max int
}

// Error implements error.Error.
func (e *ValueTooLongError) Error() string {
	return fmt.Sprintf("%s/%s: value %q is too long (max %d)", e.Name, e.Field, e.Value, e.Max)
}

// Unwrap returns ErrValueTooLong.
func (e *ValueTooLongError) Unwrap() error {
	return ErrValueTooLong
}

// patcher writes overrides into a set of field views. After the first
// failure every further write is skipped and err is kept.
type patcher struct {
	name string
	err  error
}

func (p *patcher) u32(field string, dst *uint32, v uint32) {
	if p.err != nil {
		return
	}
	log.Infof("Patching %s/%s: %d -> %d", p.name, field, *dst, v)
	*dst = v
}

func (p *patcher) u64(field string, dst *uint64, v uint64) {
	if p.err != nil {
		return
	}
	log.Infof("Patching %s/%s: %d -> %d", p.name, field, *dst, v)
	*dst = v
}

func (p *patcher) number32(field string, dst *uint32, n *units.Number) {
	if n != nil {
		p.u32(field, dst, u32(*n))
	}
}

func (p *patcher) number64(field string, dst *uint64, n *units.Number) {
	if n != nil {
		p.u64(field, dst, uint64(*n))
	}
}

func (p *patcher) flag(field string, dst *uint32, f *Flag) {
	if f != nil {
		p.u32(field, dst, f.Value())
	}
}

func (p *patcher) size(field string, dst *uint64, s *units.Size) {
	if s != nil {
		p.u64(field, dst, uint64(*s))
	}
}

func (p *patcher) tooLong(field, value string, max int) {
	log.Errorf("Patching %s/%s: value '%s' is too long", p.name, field, value)
	p.err = &ValueTooLongError{Name: p.name, Field: field, Value: value, Max: max}
}

// text writes a NUL-terminated string into dst, zeroing the rest of it.
func (p *patcher) text(field string, dst []byte, v *string) {
	if p.err != nil || v == nil {
		return
	}
	if len(*v) > len(dst)-1 {
		p.tooLong(field, *v, len(dst)-1)
		return
	}
	log.Infof("Patching %s/%s: '%s' -> '%s'", p.name, field, nvgpu.CString(dst), *v)
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, *v)
}

// wide writes a NUL-terminated UTF-16 string into dst, zeroing the rest of
// it.
func (p *patcher) wide(field string, dst []uint16, v *string) {
	if p.err != nil || v == nil {
		return
	}
	w := utf16.Encode([]rune(*v))
	if len(w) > len(dst)-1 {
		p.tooLong(field, *v, len(dst)-1)
		return
	}
	log.Infof("Patching %s/%s: '%s' -> '%s'", p.name, field, nvgpu.WideString(dst), *v)
	for i := range dst {
		dst[i] = 0
	}
	copy(dst, w)
}

// Apply writes every field set in r into view. name identifies the profile
// in log messages.
//
// Fields are written in a fixed order. If a text value does not fit, Apply
// returns a *ValueTooLongError and leaves the fields written before it
// patched.
func Apply(view nvgpu.VGPUConfigLike, name string, r *Record) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid override for %s: %w", name, err)
	}
	f := view.ConfigFields()
	p := patcher{name: name}

	p.number32("gpu_type", f.VGPUType, r.GPUType)

	p.text("card_name", f.VGPUName, r.CardName)
	p.text("vgpu_type", f.VGPUClass, r.VGPUType)
	p.text("features", f.License, r.Features)

	p.number32("max_instances", f.MaxInstance, r.MaxInstances)
	p.number32("num_displays", f.NumHeads, r.NumDisplays)
	p.number32("display_width", f.MaxResolutionX, r.DisplayWidth)
	p.number32("display_height", f.MaxResolutionY, r.DisplayHeight)
	p.number32("max_pixels", f.MaxPixels, r.MaxPixels)
	p.number32("frl_config", f.FRLConfig, r.FRLConfig)
	p.number32("mig_instance_size", f.GPUInstanceSize, r.MIGInstanceSize)
	p.number64("pci_id", f.VdevID, r.PCIID)
	p.number64("pci_device_id", f.PdevID, r.PCIDeviceID)
	p.number32("encoder_capacity", f.EncoderCapacity, r.EncoderCapacity)
	p.number64("bar1_length", f.Bar1Length, r.Bar1Length)

	p.flag("cuda_enabled", f.CUDAEnabled, r.CUDAEnabled)
	p.flag("ecc_supported", f.ECCSupported, r.ECCSupported)
	p.flag("multi_vgpu_supported", f.MultiVGPUSupported, r.MultiVGPUSupported)
	p.flag("frl_enabled", f.FRLEnable, r.FRLEnabled)

	p.size("framebuffer", f.FBLength, r.Framebuffer)
	p.size("mappable_video_size", f.MappableVideoSize, r.MappableVideoSize)
	p.size("framebuffer_reservation", f.FBReservation, r.FramebufferReservation)
	if f.ProfileSize != nil && (r.Framebuffer != nil || r.FramebufferReservation != nil) {
		p.u64("profile_size", f.ProfileSize, *f.FBLength+*f.FBReservation)
	}

	p.text("adapter_name", f.AdapterName, r.AdapterName)
	p.wide("adapter_name_unicode", f.AdapterNameUnicode, r.AdapterName)
	p.text("short_gpu_name", f.ShortGPUNameString, r.ShortGPUName)
	p.text("license_type", f.LicensedProductName, r.LicenseType)

	return p.err
}
