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

// Package override applies operator supplied vGPU profile overrides to the
// type info blocks returned by the driver.
package override

import (
	"fmt"
	"math"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/units"
	"gopkg.in/yaml.v3"
)

// Record is a sparse set of field overrides. Nil fields are left untouched.
type Record struct {
	GPUType *units.Number `toml:"gpu_type" yaml:"gpu_type"`

	CardName *string `toml:"card_name" yaml:"card_name"`
	VGPUType *string `toml:"vgpu_type" yaml:"vgpu_type"`
	Features *string `toml:"features" yaml:"features"`

	MaxInstances    *units.Number `toml:"max_instances" yaml:"max_instances"`
	NumDisplays     *units.Number `toml:"num_displays" yaml:"num_displays"`
	DisplayWidth    *units.Number `toml:"display_width" yaml:"display_width"`
	DisplayHeight   *units.Number `toml:"display_height" yaml:"display_height"`
	MaxPixels       *units.Number `toml:"max_pixels" yaml:"max_pixels"`
	FRLConfig       *units.Number `toml:"frl_config" yaml:"frl_config"`
	MIGInstanceSize *units.Number `toml:"mig_instance_size" yaml:"mig_instance_size"`
	PCIID           *units.Number `toml:"pci_id" yaml:"pci_id"`
	PCIDeviceID     *units.Number `toml:"pci_device_id" yaml:"pci_device_id"`
	EncoderCapacity *units.Number `toml:"encoder_capacity" yaml:"encoder_capacity"`
	Bar1Length      *units.Number `toml:"bar1_length" yaml:"bar1_length"`

	CUDAEnabled        *Flag `toml:"cuda_enabled" yaml:"cuda_enabled"`
	ECCSupported       *Flag `toml:"ecc_supported" yaml:"ecc_supported"`
	MultiVGPUSupported *Flag `toml:"multi_vgpu_supported" yaml:"multi_vgpu_supported"`
	FRLEnabled         *Flag `toml:"frl_enabled" yaml:"frl_enabled"`

	Framebuffer            *units.Size `toml:"framebuffer" yaml:"framebuffer"`
	MappableVideoSize      *units.Size `toml:"mappable_video_size" yaml:"mappable_video_size"`
	FramebufferReservation *units.Size `toml:"framebuffer_reservation" yaml:"framebuffer_reservation"`

	AdapterName  *string `toml:"adapter_name" yaml:"adapter_name"`
	ShortGPUName *string `toml:"short_gpu_name" yaml:"short_gpu_name"`
	LicenseType  *string `toml:"license_type" yaml:"license_type"`
}

// Validate checks that every numeric override fits the field it targets.
func (r *Record) Validate() error {
	for _, f := range []struct {
		name string
		n    *units.Number
	}{
		{"gpu_type", r.GPUType},
		{"max_instances", r.MaxInstances},
		{"num_displays", r.NumDisplays},
		{"display_width", r.DisplayWidth},
		{"display_height", r.DisplayHeight},
		{"max_pixels", r.MaxPixels},
		{"frl_config", r.FRLConfig},
		{"mig_instance_size", r.MIGInstanceSize},
		{"encoder_capacity", r.EncoderCapacity},
	} {
		if !f.n.FitsUint32() {
			return fmt.Errorf("%s: %d does not fit in 32 bits", f.name, *f.n)
		}
	}
	return nil
}

// Flag is a boolean-like override. It decodes from a boolean or an integer;
// any non-zero integer means true.
type Flag bool

// Value returns the field encoding of f: 1 for true, 0 for false.
func (f Flag) Value() uint32 {
	if f {
		return 1
	}
	return 0
}

// UnmarshalTOML implements toml.Unmarshaler.UnmarshalTOML.
func (f *Flag) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case bool:
		*f = Flag(v)
	case int64:
		if v < 0 || v > math.MaxUint32 {
			return fmt.Errorf("flag value %d out of range", v)
		}
		*f = v != 0
	default:
		return fmt.Errorf("expected boolean or integer, got %T", data)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.UnmarshalYAML.
func (f *Flag) UnmarshalYAML(node *yaml.Node) error {
	var b bool
	if err := node.Decode(&b); err == nil {
		*f = Flag(b)
		return nil
	}
	n, err := units.ParseUint(node.Value, 32)
	if err != nil {
		return fmt.Errorf("line %d: expected boolean or integer: %w", node.Line, err)
	}
	*f = n != 0
	return nil
}

// u32 narrows a validated number.
func u32(n units.Number) uint32 {
	return uint32(n)
}
