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
	"testing"
	"unsafe"
)

func TestRMControlRequest(t *testing.T) {
	if SizeofNVOS54Parameters != 0x20 {
		t.Fatalf("SizeofNVOS54Parameters = %#x, want 0x20", SizeofNVOS54Parameters)
	}
	if RMControlRequest != 0xc020462a {
		t.Errorf("RMControlRequest = %#x, want 0xc020462a", RMControlRequest)
	}
}

func TestParamsSizes(t *testing.T) {
	for _, tc := range []struct {
		name string
		got  uint32
		want uint32
	}{
		{"UUID", SizeofUUID, 0x10},
		{"NV0000_CTRL_VGPU_GET_START_DATA_PARAMS", SizeofVgpuGetStartDataParams, 0x420},
		{"NV0000_CTRL_VGPU_CREATE_DEVICE_PARAMS", SizeofVgpuCreateDeviceParams, 0x20},
		{"NV0080_CTRL_GPU_GET_VIRTUALIZATION_MODE_PARAMS", uint32(unsafe.Sizeof(NV0080_CTRL_GPU_GET_VIRTUALIZATION_MODE_PARAMS{})), 0x8},
		{"NV2080_CTRL_BUS_GET_PCI_INFO_PARAMS", SizeofBusGetPCIInfoParams, 0x10},
		{"NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP_PARAMS", SizeofGetMigrationCapParams, 0x1},
		{"VgpuConfig", SizeofVgpuConfig, 0x730},
		{"NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS", SizeofHostVgpuDeviceTypeInfo, 0x918},
		{"NVA081_CTRL_VGPU_INFO", SizeofVgpuInfo, 0x1358},
		{"NVA081_CTRL_VGPU_CONFIG_GET_VGPU_TYPE_INFO_PARAMS", SizeofVgpuConfigGetTypeInfo, 0x1360},
	} {
		if tc.got != tc.want {
			t.Errorf("sizeof(%s) = %#x, want %#x", tc.name, tc.got, tc.want)
		}
	}
	if SizeofVgpuConfigGetTypeInfoV550 <= SizeofVgpuConfigGetTypeInfo || SizeofVgpuConfigGetTypeInfoV570 <= SizeofVgpuConfigGetTypeInfoV550 {
		t.Errorf("newer type info sizes must only grow: %d, %d, %d", SizeofVgpuConfigGetTypeInfo, SizeofVgpuConfigGetTypeInfoV550, SizeofVgpuConfigGetTypeInfoV570)
	}
}

// 64-bit fields that follow a run of 32-bit fields must land on 8-byte
// boundaries, as they do in the driver's C structs.
func TestParamsOffsets(t *testing.T) {
	var legacy VgpuConfig
	var a082 NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS
	var a081 NVA081_CTRL_VGPU_INFO
	var typeInfo NVA081_CTRL_VGPU_CONFIG_GET_VGPU_TYPE_INFO_PARAMS
	var start NV0000_CTRL_VGPU_GET_START_DATA_PARAMS
	for _, tc := range []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"VgpuConfig.VdevID", unsafe.Offsetof(legacy.VdevID), 368},
		{"VgpuConfig.Bar1Length", unsafe.Offsetof(legacy.Bar1Length), 416},
		{"VgpuConfig.AdapterName", unsafe.Offsetof(legacy.AdapterName), 428},
		{"VgpuConfig.VGPUExtraParams", unsafe.Offsetof(legacy.VGPUExtraParams), 812},
		{"NVA082.VdevID", unsafe.Offsetof(a082.VdevID), 432},
		{"NVA082.Bar1Length", unsafe.Offsetof(a082.Bar1Length), 480},
		{"NVA082.AdapterNameUnicode", unsafe.Offsetof(a082.AdapterNameUnicode), 556},
		{"NVA082.HeterogeneousPlacementIDs", unsafe.Offsetof(a082.HeterogeneousPlacementIDs), 2136},
		{"NVA081.VdevID", unsafe.Offsetof(a081.VdevID), 368},
		{"NVA081.ProfileSize", unsafe.Offsetof(a081.ProfileSize), 384},
		{"NVA081.Bar1Length", unsafe.Offsetof(a081.Bar1Length), 432},
		{"NVA081.AdapterName", unsafe.Offsetof(a081.AdapterName), 444},
		{"NVA081.VGPUExtraParams", unsafe.Offsetof(a081.VGPUExtraParams), 828},
		{"NVA081.GPUInstanceProfileID", unsafe.Offsetof(a081.GPUInstanceProfileID), 4948},
		{"NVA081_TYPE_INFO.VGPUTypeInfo", unsafe.Offsetof(typeInfo.VGPUTypeInfo), 8},
		{"START_DATA.QemuPID", unsafe.Offsetof(start.QemuPID), 1040},
		{"START_DATA.GPUPCIBDF", unsafe.Offsetof(start.GPUPCIBDF), 1052},
	} {
		if tc.got != tc.want {
			t.Errorf("offsetof(%s) = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
}

func TestUUIDString(t *testing.T) {
	u := UUID{
		Data1: 0x12345678,
		Data2: 0x9abc,
		Data3: 0xdef0,
		Data4: [8]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef},
	}
	if got, want := u.String(), "12345678-9abc-def0-0123-456789abcdef"; got != want {
		t.Errorf("UUID.String() = %q, want %q", got, want)
	}
	if got, want := (UUID{}).String(), "00000000-0000-0000-0000-000000000000"; got != want {
		t.Errorf("UUID{}.String() = %q, want %q", got, want)
	}
}

func TestParseUUID(t *testing.T) {
	for _, s := range []string{
		"12345678-9abc-def0-0123-456789abcdef",
		"00000000-0000-0000-0000-000000000100",
	} {
		u, err := ParseUUID(s)
		if err != nil {
			t.Errorf("ParseUUID(%q) failed: %v", s, err)
			continue
		}
		if got := u.String(); got != s {
			t.Errorf("ParseUUID(%q).String() = %q", s, got)
		}
	}
	if u, _ := ParseUUID("12345678-9ABC-DEF0-0123-456789ABCDEF"); u.Data1 != 0x12345678 || u.Data4[7] != 0xef {
		t.Errorf("ParseUUID did not accept upper case hex: %v", u)
	}
	for _, bad := range []string{"", "12345678", "12345678-9abc-def0-0123-456789abcdeg", "123456789abcdef00123456789abcdef0000", "12345678_9abc_def0_0123_456789abcdef"} {
		if _, err := ParseUUID(bad); err == nil {
			t.Errorf("ParseUUID(%q) succeeded, want error", bad)
		}
	}
}

func TestCString(t *testing.T) {
	for _, tc := range []struct {
		in   []byte
		want string
	}{
		{[]byte("GRID P40-8Q\x00\x00\x00"), "GRID P40-8Q"},
		{[]byte("full"), "full"},
		{[]byte("\x00junk"), ""},
		{[]byte("a\xffb\x00"), "a�b"},
	} {
		if got := CString(tc.in); got != tc.want {
			t.Errorf("CString(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWideString(t *testing.T) {
	w := [8]uint16{'R', 'T', 'X', 0, 'x', 'x'}
	if got := WideString(w[:]); got != "RTX" {
		t.Errorf("WideString() = %q, want %q", got, "RTX")
	}
	full := []uint16{'a', 'b'}
	if got := WideString(full); got != "ab" {
		t.Errorf("WideString() = %q, want %q", got, "ab")
	}
}

func TestConfigFieldsAliasLayout(t *testing.T) {
	var info NVA081_CTRL_VGPU_INFO
	f := info.ConfigFields()
	*f.FBLength = 0x1000
	f.VGPUName[0] = 'A'
	f.AdapterNameUnicode[0] = 'B'
	if info.FBLength != 0x1000 || info.VGPUName[0] != 'A' || info.AdapterNameUnicode[0] != 'B' {
		t.Errorf("writes through ConfigFields did not reach the struct: %+v", f)
	}
	if f.ProfileSize == nil {
		t.Errorf("NVA081_CTRL_VGPU_INFO must expose ProfileSize")
	}

	var legacy VgpuConfig
	if legacy.ConfigFields().ProfileSize != nil {
		t.Errorf("VgpuConfig must not expose ProfileSize")
	}
	var a082 NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS
	if a082.ConfigFields().ProfileSize != nil {
		t.Errorf("NVA082 type info must not expose ProfileSize")
	}
	if got := len(a082.ConfigFields().VGPUName); got != 64 {
		t.Errorf("NVA082 vgpu name capacity = %d, want 64", got)
	}
}
