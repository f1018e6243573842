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

// Binary libvgpu_unlock is an LD_PRELOAD library for nvidia-vgpud and
// nvidia-vgpu-mgr. Build it with:
//
//	go build -buildmode=c-shared -o libvgpu_unlock.so ./cmd/libvgpu_unlock
package main

/*
#cgo LDFLAGS: -ldl

#define _GNU_SOURCE
#include <dlfcn.h>
#include <errno.h>
#include <stdlib.h>

typedef int (*ioctl_fn)(int, unsigned long, void *);

static inline void *resolve_next_ioctl(void) {
	return dlsym(RTLD_NEXT, "ioctl");
}

static inline int call_ioctl(void *fn, int fd, unsigned long request, void *argp, int *err) {
	int ret = ((ioctl_fn)fn)(fd, request, argp);
	*err = ret < 0 ? errno : 0;
	return ret;
}

static inline void set_errno(int err) {
	errno = err;
}
*/
import "C"

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/config"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/override"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/unlock"
	"golang.org/x/sys/unix"
)

var hook *unlock.Hook

func init() {
	log.SetTarget(log.FromEnv())

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		// A malformed configuration is fatal.
		log.Errorf("Failed to load %s: %v", config.DefaultPath, err)
		fmt.Fprintf(os.Stderr, "vgpu_unlock: failed to load %s: %v\n", config.DefaultPath, err)
		C.abort()
	}
	hook = unlock.NewHook(resolveNext, unlock.NewDispatcher(cfg, &unlock.Session{}, override.LoadDefault))
}

// resolveNext returns the ioctl that this library shadows.
func resolveNext() unlock.IoctlFunc {
	fn := C.resolve_next_ioctl()
	if fn == nil {
		return nil
	}
	return func(fd int32, request uintptr, argp unsafe.Pointer) (int32, unix.Errno) {
		var err C.int
		ret := C.call_ioctl(fn, C.int(fd), C.ulong(request), argp, &err)
		return int32(ret), unix.Errno(err)
	}
}

//export ioctl
func ioctl(fd C.int, request C.ulong, argp unsafe.Pointer) C.int {
	ret, errno := hook.Ioctl(int32(fd), uintptr(request), argp)
	if errno != 0 {
		C.set_errno(C.int(errno))
	}
	return C.int(ret)
}

func main() {}
