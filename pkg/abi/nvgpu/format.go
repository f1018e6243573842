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

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf16"
)

// CString returns the contents of a NUL-terminated fixed-size char buffer.
// Invalid UTF-8 is replaced with U+FFFD.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.ToValidUTF8(string(b), "�")
}

// WideString returns the contents of a NUL-terminated fixed-size UTF-16
// buffer.
func WideString(w []uint16) string {
	n := 0
	for n < len(w) && w[n] != 0 {
		n++
	}
	return string(utf16.Decode(w[:n]))
}

// hexBytes formats b as a single 0x-prefixed hex string, or "[]" if every
// byte is zero.
func hexBytes(b []byte) string {
	if len(bytes.Trim(b, "\x00")) == 0 {
		return "[]"
	}
	return "0x" + hex.EncodeToString(b)
}

// String implements fmt.Stringer.String.
func (p *NV0000_CTRL_VGPU_GET_START_DATA_PARAMS) String() string {
	return fmt.Sprintf("NV0000_CTRL_VGPU_GET_START_DATA_PARAMS{mdev_uuid: {%s}, config_params: %q, qemu_pid: %d, gpu_pci_id: %#x, vgpu_id: %d, gpu_pci_bdf: %d}",
		p.MdevUUID, CString(p.ConfigParams[:]), p.QemuPID, p.GPUPCIID, p.VGPUID, p.GPUPCIBDF)
}

// String implements fmt.Stringer.String.
func (p *NV0000_CTRL_VGPU_CREATE_DEVICE_PARAMS) String() string {
	return fmt.Sprintf("NV0000_CTRL_VGPU_CREATE_DEVICE_PARAMS{vgpu_name: {%s}, gpu_pci_id: %#x, gpu_pci_bdf: %d, vgpu_type_id: %d, vgpu_id: %d}",
		p.VGPUName, p.GPUPCIID, p.GPUPCIBDF, p.VGPUTypeID, p.VGPUID)
}

// String renders every field in declaration order. Fields absent from the
// underlying layout are omitted.
func (f VGPUConfigFields) String() string {
	var b strings.Builder
	b.WriteString("{")
	field := func(name, format string, v any) {
		if b.Len() > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: "+format, name, v)
	}
	field("vgpu_type", "%d", *f.VGPUType)
	field("vgpu_name", "%q", CString(f.VGPUName))
	field("vgpu_class", "%q", CString(f.VGPUClass))
	field("vgpu_signature", "%s", hexBytes(f.VGPUSignature))
	field("license", "%q", CString(f.License))
	field("max_instance", "%d", *f.MaxInstance)
	field("num_heads", "%d", *f.NumHeads)
	field("max_resolution_x", "%d", *f.MaxResolutionX)
	field("max_resolution_y", "%d", *f.MaxResolutionY)
	field("max_pixels", "%d", *f.MaxPixels)
	field("frl_config", "%d", *f.FRLConfig)
	field("cuda_enabled", "%d", *f.CUDAEnabled)
	field("ecc_supported", "%d", *f.ECCSupported)
	field("gpu_instance_size", "%d", *f.GPUInstanceSize)
	field("multi_vgpu_supported", "%d", *f.MultiVGPUSupported)
	field("vdev_id", "%#x", *f.VdevID)
	field("pdev_id", "%#x", *f.PdevID)
	if f.ProfileSize != nil {
		field("profile_size", "%#x", *f.ProfileSize)
	}
	field("fb_length", "%#x", *f.FBLength)
	field("mappable_video_size", "%#x", *f.MappableVideoSize)
	field("fb_reservation", "%#x", *f.FBReservation)
	field("encoder_capacity", "%#x", *f.EncoderCapacity)
	field("bar1_length", "%#x", *f.Bar1Length)
	field("frl_enable", "%d", *f.FRLEnable)
	field("adapter_name", "%q", CString(f.AdapterName))
	field("adapter_name_unicode", "%q", WideString(f.AdapterNameUnicode))
	field("short_gpu_name_string", "%q", CString(f.ShortGPUNameString))
	field("licensed_product_name", "%q", CString(f.LicensedProductName))
	field("vgpu_extra_params", "%s", hexBytes(f.VGPUExtraParams))
	b.WriteString("}")
	return b.String()
}
