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

package unlock

import (
	"fmt"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
)

var commandNames = map[uint32]string{
	nvgpu.NV0000_CTRL_CMD_VGPU_GET_START_DATA:                 "NV0000_CTRL_CMD_VGPU_GET_START_DATA",
	nvgpu.NV0000_CTRL_CMD_VGPU_CREATE_DEVICE:                  "NV0000_CTRL_CMD_VGPU_CREATE_DEVICE",
	nvgpu.NV0080_CTRL_CMD_GPU_GET_VIRTUALIZATION_MODE:         "NV0080_CTRL_CMD_GPU_GET_VIRTUALIZATION_MODE",
	nvgpu.NV2080_CTRL_CMD_BUS_GET_PCI_INFO:                    "NV2080_CTRL_CMD_BUS_GET_PCI_INFO",
	nvgpu.NV2080_CTRL_CMD_GPU_GET_INFOROM_OBJECT_VERSION:      "NV2080_CTRL_CMD_GPU_GET_INFOROM_OBJECT_VERSION",
	nvgpu.NV9096_CTRL_CMD_GET_ZBC_CLEAR_TABLE:                 "NV9096_CTRL_CMD_GET_ZBC_CLEAR_TABLE",
	nvgpu.NVA081_CTRL_CMD_VGPU_CONFIG_GET_VGPU_TYPE_INFO:      "NVA081_CTRL_CMD_VGPU_CONFIG_GET_VGPU_TYPE_INFO",
	nvgpu.NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP:       "NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP",
	nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO: "NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO",
	nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_0104:               "NVA082_CTRL_CMD_HOST_VGPU_DEVICE_0104",
}

// CommandName returns the symbolic name of an RM control command, or its
// number in hex if it is not one the hook handles.
func CommandName(cmd uint32) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("control command %#x", cmd)
}
