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

// Package nvgpu contains the parts of the Nvidia GPU driver ABI that the
// vGPU unlock hook reads and patches: the RM control ioctl envelope, control
// command numbers, status codes and the vGPU parameter block layouts across
// the driver releases that are supported.
package nvgpu

import "unsafe"

// NV_IOCTL_MAGIC is the "canonical" IOC_TYPE for frontend ioctls.
const NV_IOCTL_MAGIC = uint32('F')

// Frontend ioctl numbers, from src/nvidia/arch/nvalloc/unix/include/nv_escape.h.
// Note that these are only the IOC_NR part of the ioctl command.
const (
	NV_ESC_RM_CONTROL = 0x2a
)

// Linux ioctl request encoding, from include/uapi/asm-generic/ioctl.h.
const (
	IOC_WRITE = 1
	IOC_READ  = 2

	IOC_NRSHIFT   = 0
	IOC_TYPESHIFT = 8
	IOC_SIZESHIFT = 16
	IOC_DIRSHIFT  = 30
)

// IOC outputs the result of _IOC macro.
func IOC(dir, typ, nr, size uint32) uint32 {
	return dir<<IOC_DIRSHIFT | typ<<IOC_TYPESHIFT | nr<<IOC_NRSHIFT | size<<IOC_SIZESHIFT
}

// IOWR outputs the result of _IOWR macro.
func IOWR(typ, nr, size uint32) uint32 {
	return IOC(IOC_READ|IOC_WRITE, typ, nr, size)
}

// P64 is an untyped 64-bit pointer value as stored in driver parameter
// structs.
type P64 uint64

// Handle is NvHandle, from src/common/sdk/nvidia/inc/nvtypes.h.
type Handle uint32

// NVOS54Parameters is the parameter type for NV_ESC_RM_CONTROL, from
// src/common/sdk/nvidia/inc/nvos.h.
type NVOS54Parameters struct {
	HClient    Handle
	HObject    Handle
	Cmd        uint32
	Flags      uint32
	Params     P64
	ParamsSize uint32
	Status     uint32
}

// SizeofNVOS54Parameters is sizeof(NVOS54_PARAMETERS).
const SizeofNVOS54Parameters = uint32(unsafe.Sizeof(NVOS54Parameters{}))

// RMControlRequest is the full ioctl(2) request value that nvidia-vgpud and
// nvidia-vgpu-mgr pass for NV_ESC_RM_CONTROL. It is a constant for a given
// architecture since NVOS54Parameters has a fixed size.
var RMControlRequest = uintptr(IOWR(NV_IOCTL_MAGIC, NV_ESC_RM_CONTROL, SizeofNVOS54Parameters))
