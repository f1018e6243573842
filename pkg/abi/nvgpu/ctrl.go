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

// Status codes, from kernel-open/common/inc/nvstatuscodes.h.
const (
	NV_OK = 0x00000000

	// NV_ERR_BUSY_RETRY makes nvidia-vgpud sleep for a bit (first 0.1s, then
	// 1s, then 10s) and issue the same control command again, for up to 24h.
	NV_ERR_BUSY_RETRY = 0x00000003

	NV_ERR_NOT_SUPPORTED    = 0x00000056
	NV_ERR_OBJECT_NOT_FOUND = 0x00000057
)

// From src/common/sdk/nvidia/inc/ctrl/ctrl0000/ctrl0000vgpu.h:
const (
	NV0000_CTRL_CMD_VGPU_GET_START_DATA = 0xc01

	// NV0000_CTRL_CMD_VGPU_CREATE_DEVICE is issued by 17.x and newer drivers,
	// which pass the mdev UUID as the vGPU name.
	NV0000_CTRL_CMD_VGPU_CREATE_DEVICE = 0xc02
)

// From src/common/sdk/nvidia/inc/ctrl/ctrl0080/ctrl0080gpu.h:
const (
	NV0080_CTRL_CMD_GPU_GET_VIRTUALIZATION_MODE = 0x800289

	// NV0080_CTRL_GPU_VIRTUALIZATION_MODE_HOST is the value nvidia-vgpu-mgr
	// expects for a vGPU capable GPU.
	NV0080_CTRL_GPU_VIRTUALIZATION_MODE_HOST = 0x00000003
)

// From src/common/sdk/nvidia/inc/ctrl/ctrl2080/ctrl2080bus.h:
const (
	NV2080_CTRL_CMD_BUS_GET_PCI_INFO = 0x20801801
)

// From src/common/sdk/nvidia/inc/ctrl/ctrl2080/ctrl2080gpu.h:
const (
	NV2080_CTRL_CMD_GPU_GET_INFOROM_OBJECT_VERSION = 0x2080014b

	NV_GRID_LICENSE_INFO_MAX_LENGTH   = 128
	NV2080_GPU_MAX_NAME_STRING_LENGTH = 0x40
)

// From src/common/sdk/nvidia/inc/ctrl/ctrl9096.h:
const (
	NV9096_CTRL_CMD_GET_ZBC_CLEAR_TABLE = 0x90960103
)

// From src/common/sdk/nvidia/inc/ctrl/ctrla081.h:
const (
	NVA081_CTRL_CMD_VGPU_CONFIG_GET_VGPU_TYPE_INFO = 0xa0810103
	NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP  = 0xa0810112

	NVA081_VGPU_STRING_BUFFER_SIZE = 32
	NVA081_VGPU_SIGNATURE_SIZE     = 128
	NVA081_EXTRA_PARAMETERS_SIZE   = 1024
)

// NVA082 (host vGPU device) commands. These are not part of the open kernel
// module headers; the numbers were observed on nvidia-vgpu-mgr.
const (
	NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO = 0xa0820102

	// NVA082_CTRL_CMD_HOST_VGPU_DEVICE_0104 is undocumented. It fails on
	// unlocked consumer GPUs without consequence.
	NVA082_CTRL_CMD_HOST_VGPU_DEVICE_0104 = 0xa0820104
)
