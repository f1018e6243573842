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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/override"
)

// preview implements subcommands.Command for the "preview" command.
type preview struct {
	vgpuType uint
	mdev     string
	layout   string
}

// Name implements subcommands.Command.Name.
func (*preview) Name() string {
	return "preview"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*preview) Synopsis() string {
	return "applies profile overrides to an empty type info block and prints it"
}

// Usage implements subcommands.Command.Usage.
func (*preview) Usage() string {
	return `preview -type <vgpu type> [-mdev <uuid>] [-layout a081|a082|legacy]

Applies the overrides matching a vGPU type, and optionally an mdev UUID, to a
zeroed type info block and prints the result. Patches are logged to stderr.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (p *preview) SetFlags(f *flag.FlagSet) {
	f.UintVar(&p.vgpuType, "type", 0, "vGPU type id, as in nvidia-<id>")
	f.StringVar(&p.mdev, "mdev", "", "mdev UUID of the started vGPU")
	f.StringVar(&p.layout, "layout", "a081", "type info layout: a081 (R525+), a082 (R510) or legacy (R460)")
}

// Execute implements subcommands.Command.Execute.
func (p *preview) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || p.vgpuType == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	var mdev *nvgpu.UUID
	if p.mdev != "" {
		u, err := nvgpu.ParseUUID(p.mdev)
		if err != nil {
			return errorf("%v", err)
		}
		mdev = &u
	}
	overrides, err := override.Load(overrideFile())
	if err != nil {
		return errorf("%v", err)
	}
	if err := runPreview(os.Stdout, overrides, p.layout, uint32(p.vgpuType), mdev); err != nil {
		return errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

// newTypeInfo returns a zeroed type info block in the named layout.
func newTypeInfo(layout string) (nvgpu.VGPUConfigLike, error) {
	switch layout {
	case "a081":
		return &nvgpu.NVA081_CTRL_VGPU_INFO{}, nil
	case "a082":
		return &nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS{}, nil
	case "legacy":
		return &nvgpu.VgpuConfig{}, nil
	default:
		return nil, fmt.Errorf("unknown layout %q", layout)
	}
}

func runPreview(w io.Writer, overrides *override.Config, layout string, vgpuType uint32, mdev *nvgpu.UUID) error {
	view, err := newTypeInfo(layout)
	if err != nil {
		return err
	}
	*view.ConfigFields().VGPUType = vgpuType
	if err := overrides.ApplyMatches(view, mdev); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, view.ConfigFields())
	return err
}
