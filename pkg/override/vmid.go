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
	"fmt"
	"strconv"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
)

// VMID derives a Proxmox VM id from an mdev UUID of the form
// <host pci index>-0000-0000-0000-<vm id>, where the last group spells the
// VM id in decimal digits. For example 00000000-0000-0000-0000-000000000100
// yields 100.
func VMID(u nvgpu.UUID) (uint64, bool) {
	if u.Data2 != 0 || u.Data3 != 0 || u.Data4[0] != 0 || u.Data4[1] != 0 {
		return 0, false
	}
	s := fmt.Sprintf("%02x%02x%02x%02x%02x%02x", u.Data4[2], u.Data4[3], u.Data4[4], u.Data4[5], u.Data4[6], u.Data4[7])
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
