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
	"sync/atomic"
	"unsafe"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"golang.org/x/sys/unix"
)

// IoctlFunc is an ioctl implementation. It returns the C return value and
// the errno to report with it.
type IoctlFunc func(fd int32, request uintptr, argp unsafe.Pointer) (int32, unix.Errno)

// Hook wraps the interposed ioctl.
type Hook struct {
	resolve    func() IoctlFunc
	next       atomic.Pointer[IoctlFunc]
	dispatcher *Dispatcher
}

// NewHook returns a Hook that forwards to the implementation returned by
// resolve and hands RM control results to d. resolve is called on first use;
// if it returns nil the ioctl system call is issued directly.
func NewHook(resolve func() IoctlFunc, d *Dispatcher) *Hook {
	return &Hook{
		resolve:    resolve,
		dispatcher: d,
	}
}

// nextIoctl returns the interposed implementation, resolving it on first
// use. Concurrent first calls may resolve more than once; every resolution
// yields the same function.
func (h *Hook) nextIoctl() IoctlFunc {
	if fn := h.next.Load(); fn != nil {
		return *fn
	}
	fn := h.resolve()
	if fn == nil {
		log.Warningf("Failed to resolve the next ioctl symbol, issuing the system call directly")
		fn = rawIoctl
	}
	h.next.Store(&fn)
	return fn
}

// rawIoctl issues ioctl(2) without going through libc.
func rawIoctl(fd int32, request uintptr, argp unsafe.Pointer) (int32, unix.Errno) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), request, uintptr(argp))
	if errno != 0 {
		return -1, errno
	}
	return int32(r), 0
}

// Ioctl performs the ioctl and patches NV_ESC_RM_CONTROL results. If the
// result must not reach the caller, it returns -1 with EIO.
func (h *Hook) Ioctl(fd int32, request uintptr, argp unsafe.Pointer) (int32, unix.Errno) {
	ret, errno := h.nextIoctl()(fd, request, argp)
	if request != nvgpu.RMControlRequest || ret < 0 || argp == nil {
		return ret, errno
	}
	ctl := controlParams(argp)
	if ctl.Status == nvgpu.NV_ERR_BUSY_RETRY {
		return ret, errno
	}
	if err := h.dispatcher.Dispatch(ctl); err != nil {
		log.Errorf("%s: %v", CommandName(ctl.Cmd), err)
		return -1, unix.EIO
	}
	return ret, errno
}
