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
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/unlock"
)

// layouts implements subcommands.Command for the "layouts" command.
type layouts struct {
	driver string
}

// Name implements subcommands.Command.Name.
func (*layouts) Name() string {
	return "layouts"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*layouts) Synopsis() string {
	return "lists the control commands and parameter layouts handled per driver release"
}

// Usage implements subcommands.Command.Usage.
func (*layouts) Usage() string {
	return `layouts [-driver <version>]

Lists the RM control commands the hook patches and the parameter sizes it
accepts for them. Without -driver, lists every release that changed them.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (l *layouts) SetFlags(f *flag.FlagSet) {
	f.StringVar(&l.driver, "driver", "", "host driver version, e.g. 550.54.10")
}

// Execute implements subcommands.Command.Execute.
func (l *layouts) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	versions := unlock.SupportedVersions()
	if l.driver != "" {
		versions = []string{l.driver}
	}
	for i, v := range versions {
		if i > 0 {
			fmt.Println()
		}
		if err := printLayouts(os.Stdout, v); err != nil {
			return errorf("%v", err)
		}
	}
	return subcommands.ExitSuccess
}

func printLayouts(w io.Writer, version string) error {
	cmds, err := unlock.Commands(version)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Driver %s:\n", version)
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PASS\tCOMMAND\tNAME\tSIZE\tLAYOUT")
	for _, c := range cmds {
		size := "any"
		if c.Size != 0 {
			size = fmt.Sprintf("%d", c.Size)
			if c.AtLeast {
				size = ">=" + size
			}
		}
		fmt.Fprintf(tw, "%s\t%#x\t%s\t%s\t%s\n", c.Pass, c.Cmd, c.Name, size, c.Layout)
	}
	return tw.Flush()
}
