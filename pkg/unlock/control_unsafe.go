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
	"unsafe"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
)

// paramsAs reinterprets the parameter block of ctl as a T. The block is
// caller owned memory; the caller must have checked that ParamsSize covers a
// T.
func paramsAs[T any](ctl *nvgpu.NVOS54Parameters) *T {
	return (*T)(*(*unsafe.Pointer)(unsafe.Pointer(&ctl.Params)))
}

// controlParams reinterprets the argument of an NV_ESC_RM_CONTROL ioctl.
func controlParams(argp unsafe.Pointer) *nvgpu.NVOS54Parameters {
	return (*nvgpu.NVOS54Parameters)(argp)
}
