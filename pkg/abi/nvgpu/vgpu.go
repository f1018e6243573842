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
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"unsafe"
)

// UUID is the 16-byte VM/mdev identity carried by the vGPU start and create
// device commands. Unlike RFC 4122 byte order, the first three groups are
// stored as native-endian integers.
type UUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// String returns the canonical hyphenated lower-case hex form.
func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		u.Data1, u.Data2, u.Data3,
		u.Data4[0], u.Data4[1],
		u.Data4[2], u.Data4[3], u.Data4[4], u.Data4[5], u.Data4[6], u.Data4[7])
}

// ParseUUID parses the canonical hyphenated form produced by String.
func ParseUUID(s string) (UUID, error) {
	if len(s) != 36 || s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
		return UUID{}, fmt.Errorf("invalid UUID %q", s)
	}
	b, err := hex.DecodeString(s[0:8] + s[9:13] + s[14:18] + s[19:23] + s[24:36])
	if err != nil {
		return UUID{}, fmt.Errorf("invalid UUID %q: %w", s, err)
	}
	u := UUID{
		Data1: binary.BigEndian.Uint32(b[0:4]),
		Data2: binary.BigEndian.Uint16(b[4:6]),
		Data3: binary.BigEndian.Uint16(b[6:8]),
	}
	copy(u.Data4[:], b[8:16])
	return u, nil
}

// NV0000_CTRL_VGPU_GET_START_DATA_PARAMS is the parameter type for
// NV0000_CTRL_CMD_VGPU_GET_START_DATA.
type NV0000_CTRL_VGPU_GET_START_DATA_PARAMS struct {
	MdevUUID     UUID
	ConfigParams [1024]byte
	QemuPID      uint32
	GPUPCIID     uint32
	VGPUID       uint16
	_            [2]byte
	GPUPCIBDF    uint32
}

// NV0000_CTRL_VGPU_CREATE_DEVICE_PARAMS is the parameter type for
// NV0000_CTRL_CMD_VGPU_CREATE_DEVICE. R550 appends gpuInstanceId and
// placementId; those are never read.
type NV0000_CTRL_VGPU_CREATE_DEVICE_PARAMS struct {
	VGPUName   UUID
	GPUPCIID   uint32
	GPUPCIBDF  uint32
	VGPUTypeID uint32
	VGPUID     uint16
	_          [2]byte
}

// NV0080_CTRL_GPU_GET_VIRTUALIZATION_MODE_PARAMS is the parameter type for
// NV0080_CTRL_CMD_GPU_GET_VIRTUALIZATION_MODE. Older drivers only pass the
// mode.
type NV0080_CTRL_GPU_GET_VIRTUALIZATION_MODE_PARAMS struct {
	VirtualizationMode uint32
	IsGridBuild        uint8
	_                  [3]byte
}

// NV2080_CTRL_BUS_GET_PCI_INFO_PARAMS is the parameter type for
// NV2080_CTRL_CMD_BUS_GET_PCI_INFO. The upper 16 bits of PCIDeviceID and
// PCISubSystemID hold the device and subsystem IDs; the lower 16 bits hold
// the vendor IDs.
type NV2080_CTRL_BUS_GET_PCI_INFO_PARAMS struct {
	PCIDeviceID    uint32
	PCISubSystemID uint32
	PCIRevisionID  uint32
	PCIExtDeviceID uint32
}

// NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP_PARAMS is the parameter type
// for NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP.
type NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP_PARAMS struct {
	MigrationCap uint8
}

// VgpuConfig is the type info layout returned for
// NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO by 460 and 470 series
// drivers.
type VgpuConfig struct {
	VGPUType            uint32
	VGPUName            [32]byte
	VGPUClass           [32]byte
	VGPUSignature       [128]byte
	Features            [128]byte
	MaxInstance         uint32
	NumHeads            uint32
	MaxResolutionX      uint32
	MaxResolutionY      uint32
	MaxPixels           uint32
	FRLConfig           uint32
	CUDAEnabled         uint32
	ECCSupported        uint32
	GPUInstanceSize     uint32
	MultiVGPUSupported  uint32
	_                   [4]byte
	VdevID              uint64
	PdevID              uint64
	FBLength            uint64
	MappableVideoSize   uint64
	FBReservation       uint64
	EncoderCapacity     uint32
	_                   [4]byte
	Bar1Length          uint64
	FRLEnable           uint32
	AdapterName         [NV2080_GPU_MAX_NAME_STRING_LENGTH]byte
	AdapterNameUnicode  [NV2080_GPU_MAX_NAME_STRING_LENGTH]uint16
	ShortGPUNameString  [NV2080_GPU_MAX_NAME_STRING_LENGTH]byte
	LicensedProductName [NV_GRID_LICENSE_INFO_MAX_LENGTH]byte
	VGPUExtraParams     [1024]byte
	_                   [4]byte
}

// NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS is the type info
// layout returned for NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO by
// 510 series drivers. It is inferred from a comment in NVA081_CTRL_VGPU_INFO.
type NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS struct {
	VGPUType                    uint32
	VGPUName                    [64]byte
	VGPUClass                   [64]byte
	VGPUSignature               [128]byte
	License                     [128]byte
	MaxInstance                 uint32
	NumHeads                    uint32
	MaxResolutionX              uint32
	MaxResolutionY              uint32
	MaxPixels                   uint32
	FRLConfig                   uint32
	CUDAEnabled                 uint32
	ECCSupported                uint32
	GPUInstanceSize             uint32
	MultiVGPUSupported          uint32
	_                           [4]byte
	VdevID                      uint64
	PdevID                      uint64
	FBLength                    uint64
	MappableVideoSize           uint64
	FBReservation               uint64
	EncoderCapacity             uint32
	_                           [4]byte
	Bar1Length                  uint64
	FRLEnable                   uint32
	AdapterName                 [NV2080_GPU_MAX_NAME_STRING_LENGTH]byte
	AdapterNameUnicode          [NV2080_GPU_MAX_NAME_STRING_LENGTH]uint16
	ShortGPUNameString          [NV2080_GPU_MAX_NAME_STRING_LENGTH]byte
	LicensedProductName         [NV_GRID_LICENSE_INFO_MAX_LENGTH]byte
	VGPUExtraParams             [1024]byte
	FtraceEnable                uint32
	GPUDirectSupported          uint32
	NVLinkP2PSupported          uint32
	MaxInstancePerGI            uint32
	MultiVGPUExclusive          uint32
	ExclusiveType               uint32
	ExclusiveSize               uint32
	GPUInstanceProfileID        uint32
	PlacementSize               uint32
	HomogeneousPlacementCount   uint32
	HomogeneousPlacementIDs     [48]uint32
	HeterogeneousPlacementCount uint32
	HeterogeneousPlacementIDs   [48]uint32
}

// NVA081_CTRL_VGPU_INFO is the type info layout used from vGPU 15.0
// (525.60.12) onwards.
//
// R550 and R570 append placement fields after GPUInstanceProfileID. They are
// left out so the struct keeps matching 15.x and 16.x drivers.
type NVA081_CTRL_VGPU_INFO struct {
	VGPUType            uint32
	VGPUName            [NVA081_VGPU_STRING_BUFFER_SIZE]byte
	VGPUClass           [NVA081_VGPU_STRING_BUFFER_SIZE]byte
	VGPUSignature       [NVA081_VGPU_SIGNATURE_SIZE]byte
	License             [NV_GRID_LICENSE_INFO_MAX_LENGTH]byte
	MaxInstance         uint32
	NumHeads            uint32
	MaxResolutionX      uint32
	MaxResolutionY      uint32
	MaxPixels           uint32
	FRLConfig           uint32
	CUDAEnabled         uint32
	ECCSupported        uint32
	GPUInstanceSize     uint32
	MultiVGPUSupported  uint32
	_                   [4]byte
	VdevID              uint64
	PdevID              uint64
	ProfileSize         uint64
	FBLength            uint64
	GSPHeapSize         uint64
	FBReservation       uint64
	MappableVideoSize   uint64
	EncoderCapacity     uint32
	_                   [4]byte
	Bar1Length          uint64
	FRLEnable           uint32
	AdapterName         [NV2080_GPU_MAX_NAME_STRING_LENGTH]byte
	AdapterNameUnicode  [NV2080_GPU_MAX_NAME_STRING_LENGTH]uint16
	ShortGPUNameString  [NV2080_GPU_MAX_NAME_STRING_LENGTH]byte
	LicensedProductName [NV_GRID_LICENSE_INFO_MAX_LENGTH]byte
	// VGPUExtraParams is declared as NvU32[NVA081_EXTRA_PARAMETERS_SIZE] but
	// the driver uses it as a string buffer.
	VGPUExtraParams      [NVA081_EXTRA_PARAMETERS_SIZE * 4]byte
	FtraceEnable         uint32
	GPUDirectSupported   uint32
	NVLinkP2PSupported   uint32
	MultiVGPUExclusive   uint32
	ExclusiveType        uint32
	ExclusiveSize        uint32
	GPUInstanceProfileID uint32
}

// NVA081_CTRL_VGPU_CONFIG_GET_VGPU_TYPE_INFO_PARAMS is the parameter type for
// NVA081_CTRL_CMD_VGPU_CONFIG_GET_VGPU_TYPE_INFO.
type NVA081_CTRL_VGPU_CONFIG_GET_VGPU_TYPE_INFO_PARAMS struct {
	VGPUType     uint32
	_            [4]byte
	VGPUTypeInfo NVA081_CTRL_VGPU_INFO
}

// Parameter block sizes.
const (
	SizeofUUID                      = uint32(unsafe.Sizeof(UUID{}))
	SizeofVgpuGetStartDataParams    = uint32(unsafe.Sizeof(NV0000_CTRL_VGPU_GET_START_DATA_PARAMS{}))
	SizeofVgpuCreateDeviceParams    = uint32(unsafe.Sizeof(NV0000_CTRL_VGPU_CREATE_DEVICE_PARAMS{}))
	SizeofGetVirtualizationModeMin  = uint32(unsafe.Sizeof(uint32(0)))
	SizeofBusGetPCIInfoParams       = uint32(unsafe.Sizeof(NV2080_CTRL_BUS_GET_PCI_INFO_PARAMS{}))
	SizeofGetMigrationCapParams     = uint32(unsafe.Sizeof(NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP_PARAMS{}))
	SizeofVgpuConfig                = uint32(unsafe.Sizeof(VgpuConfig{}))
	SizeofHostVgpuDeviceTypeInfo    = uint32(unsafe.Sizeof(NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS{}))
	SizeofVgpuInfo                  = uint32(unsafe.Sizeof(NVA081_CTRL_VGPU_INFO{}))
	SizeofVgpuConfigGetTypeInfo     = uint32(unsafe.Sizeof(NVA081_CTRL_VGPU_CONFIG_GET_VGPU_TYPE_INFO_PARAMS{}))
	SizeofVgpuConfigGetTypeInfoV550 = 5096
	SizeofVgpuConfigGetTypeInfoV570 = 5232
)
