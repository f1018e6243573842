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

package nvgpu

// VGPUConfigFields holds mutable views into the fields of a vGPU type info
// layout. Byte and uint16 slices alias the fixed-size arrays of the
// underlying struct, so writes through them patch the parameter block in
// place.
type VGPUConfigFields struct {
	VGPUType           *uint32
	VGPUName           []byte
	VGPUClass          []byte
	VGPUSignature      []byte
	License            []byte
	MaxInstance        *uint32
	NumHeads           *uint32
	MaxResolutionX     *uint32
	MaxResolutionY     *uint32
	MaxPixels          *uint32
	FRLConfig          *uint32
	CUDAEnabled        *uint32
	ECCSupported       *uint32
	GPUInstanceSize    *uint32
	MultiVGPUSupported *uint32
	VdevID             *uint64
	PdevID             *uint64
	// ProfileSize is nil for layouts that predate the field.
	ProfileSize         *uint64
	FBLength            *uint64
	MappableVideoSize   *uint64
	FBReservation       *uint64
	EncoderCapacity     *uint32
	Bar1Length          *uint64
	FRLEnable           *uint32
	AdapterName         []byte
	AdapterNameUnicode  []uint16
	ShortGPUNameString  []byte
	LicensedProductName []byte
	VGPUExtraParams     []byte
}

// VGPUConfigLike is implemented by every vGPU type info layout, so that
// profile overrides are written once against VGPUConfigFields.
type VGPUConfigLike interface {
	// ConfigFields returns views into the receiver's fields.
	ConfigFields() VGPUConfigFields
}

// ConfigFields implements VGPUConfigLike.ConfigFields.
func (c *VgpuConfig) ConfigFields() VGPUConfigFields {
	return VGPUConfigFields{
		VGPUType:            &c.VGPUType,
		VGPUName:            c.VGPUName[:],
		VGPUClass:           c.VGPUClass[:],
		VGPUSignature:       c.VGPUSignature[:],
		License:             c.Features[:],
		MaxInstance:         &c.MaxInstance,
		NumHeads:            &c.NumHeads,
		MaxResolutionX:      &c.MaxResolutionX,
		MaxResolutionY:      &c.MaxResolutionY,
		MaxPixels:           &c.MaxPixels,
		FRLConfig:           &c.FRLConfig,
		CUDAEnabled:         &c.CUDAEnabled,
		ECCSupported:        &c.ECCSupported,
		GPUInstanceSize:     &c.GPUInstanceSize,
		MultiVGPUSupported:  &c.MultiVGPUSupported,
		VdevID:              &c.VdevID,
		PdevID:              &c.PdevID,
		FBLength:            &c.FBLength,
		MappableVideoSize:   &c.MappableVideoSize,
		FBReservation:       &c.FBReservation,
		EncoderCapacity:     &c.EncoderCapacity,
		Bar1Length:          &c.Bar1Length,
		FRLEnable:           &c.FRLEnable,
		AdapterName:         c.AdapterName[:],
		AdapterNameUnicode:  c.AdapterNameUnicode[:],
		ShortGPUNameString:  c.ShortGPUNameString[:],
		LicensedProductName: c.LicensedProductName[:],
		VGPUExtraParams:     c.VGPUExtraParams[:],
	}
}

// ConfigFields implements VGPUConfigLike.ConfigFields.
func (c *NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS) ConfigFields() VGPUConfigFields {
	return VGPUConfigFields{
		VGPUType:            &c.VGPUType,
		VGPUName:            c.VGPUName[:],
		VGPUClass:           c.VGPUClass[:],
		VGPUSignature:       c.VGPUSignature[:],
		License:             c.License[:],
		MaxInstance:         &c.MaxInstance,
		NumHeads:            &c.NumHeads,
		MaxResolutionX:      &c.MaxResolutionX,
		MaxResolutionY:      &c.MaxResolutionY,
		MaxPixels:           &c.MaxPixels,
		FRLConfig:           &c.FRLConfig,
		CUDAEnabled:         &c.CUDAEnabled,
		ECCSupported:        &c.ECCSupported,
		GPUInstanceSize:     &c.GPUInstanceSize,
		MultiVGPUSupported:  &c.MultiVGPUSupported,
		VdevID:              &c.VdevID,
		PdevID:              &c.PdevID,
		FBLength:            &c.FBLength,
		MappableVideoSize:   &c.MappableVideoSize,
		FBReservation:       &c.FBReservation,
		EncoderCapacity:     &c.EncoderCapacity,
		Bar1Length:          &c.Bar1Length,
		FRLEnable:           &c.FRLEnable,
		AdapterName:         c.AdapterName[:],
		AdapterNameUnicode:  c.AdapterNameUnicode[:],
		ShortGPUNameString:  c.ShortGPUNameString[:],
		LicensedProductName: c.LicensedProductName[:],
		VGPUExtraParams:     c.VGPUExtraParams[:],
	}
}

// ConfigFields implements VGPUConfigLike.ConfigFields.
func (c *NVA081_CTRL_VGPU_INFO) ConfigFields() VGPUConfigFields {
	return VGPUConfigFields{
		VGPUType:            &c.VGPUType,
		VGPUName:            c.VGPUName[:],
		VGPUClass:           c.VGPUClass[:],
		VGPUSignature:       c.VGPUSignature[:],
		License:             c.License[:],
		MaxInstance:         &c.MaxInstance,
		NumHeads:            &c.NumHeads,
		MaxResolutionX:      &c.MaxResolutionX,
		MaxResolutionY:      &c.MaxResolutionY,
		MaxPixels:           &c.MaxPixels,
		FRLConfig:           &c.FRLConfig,
		CUDAEnabled:         &c.CUDAEnabled,
		ECCSupported:        &c.ECCSupported,
		GPUInstanceSize:     &c.GPUInstanceSize,
		MultiVGPUSupported:  &c.MultiVGPUSupported,
		VdevID:              &c.VdevID,
		PdevID:              &c.PdevID,
		ProfileSize:         &c.ProfileSize,
		FBLength:            &c.FBLength,
		MappableVideoSize:   &c.MappableVideoSize,
		FBReservation:       &c.FBReservation,
		EncoderCapacity:     &c.EncoderCapacity,
		Bar1Length:          &c.Bar1Length,
		FRLEnable:           &c.FRLEnable,
		AdapterName:         c.AdapterName[:],
		AdapterNameUnicode:  c.AdapterNameUnicode[:],
		ShortGPUNameString:  c.ShortGPUNameString[:],
		LicensedProductName: c.LicensedProductName[:],
		VGPUExtraParams:     c.VGPUExtraParams[:],
	}
}
