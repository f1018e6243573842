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
	"github.com/vgpu-unlock/vgpu_unlock/pkg/config"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/spoof"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/units"
)

// spoofCmd implements subcommands.Command for the "spoof" command.
type spoofCmd struct{}

// Name implements subcommands.Command.Name.
func (*spoofCmd) Name() string {
	return "spoof"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*spoofCmd) Synopsis() string {
	return "shows the PCI identity reported for a GPU"
}

// Usage implements subcommands.Command.Usage.
func (*spoofCmd) Usage() string {
	return `spoof [device id...]

Prints the device and subsystem IDs reported in place of each given device ID
(decimal, 0x or 0b notation). Entries of pci_info_map are shown in place of the
built-in table; the hook itself only uses the built-in table. Without
arguments, prints the built-in table.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*spoofCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*spoofCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		for i := range spoof.Table {
			fmt.Println(&spoof.Table[i])
		}
		return subcommands.ExitSuccess
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return errorf("%v", err)
	}
	pciMap, err := cfg.PCIInfo()
	if err != nil {
		return errorf("%v", err)
	}
	for _, arg := range f.Args() {
		id, err := units.ParseUint(arg, 16)
		if err != nil {
			return errorf("invalid device id: %v", err)
		}
		describeSpoof(os.Stdout, uint16(id), pciMap)
	}
	return subcommands.ExitSuccess
}

func describeSpoof(w io.Writer, device uint16, pciMap map[uint16]config.PCIInfo) {
	if info, ok := pciMap[device]; ok {
		fmt.Fprintf(w, "%#04x: device %#04x, subsystem %#04x (pci_info_map)\n", device, info.DeviceID, info.SubSystemID)
		return
	}
	e, ok := spoof.Lookup(spoof.ID(device))
	if !ok {
		fmt.Fprintf(w, "%#04x: not spoofed\n", device)
		return
	}
	fmt.Fprintf(w, "%#04x: %v\n", device, e)
}
