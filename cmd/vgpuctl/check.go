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
	"regexp"
	"sort"

	"github.com/google/subcommands"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/config"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/override"
)

// check implements subcommands.Command for the "check" command.
type check struct{}

// Name implements subcommands.Command.Name.
func (*check) Name() string {
	return "check"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*check) Synopsis() string {
	return "validates the global configuration and the profile override file"
}

// Usage implements subcommands.Command.Usage.
func (*check) Usage() string {
	return `check

Loads both configuration files the way the hook does and reports what they
contain. Exits non-zero if either file would be rejected, or if pci_info_map
is invalid.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*check) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*check) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return errorf("%v", err)
	}
	if _, err := cfg.PCIInfo(); err != nil {
		return errorf("invalid pci_info_map in %s: %v", *configPath, err)
	}
	path := overrideFile()
	overrides, err := override.Load(path)
	if err != nil {
		return errorf("%v", err)
	}
	printCheck(os.Stdout, *configPath, cfg, path, overrides)
	return subcommands.ExitSuccess
}

var profileNameRE = regexp.MustCompile(`^nvidia-[0-9]+$`)

func printCheck(w io.Writer, cfgPath string, cfg *config.Config, overridePath string, overrides *override.Config) {
	fmt.Fprintf(w, "%s: unlock=%t unlock_migration=%t pci_info_map=%d entries\n",
		cfgPath, cfg.Unlock, cfg.UnlockMigration, len(cfg.PCIInfoMap))
	fmt.Fprintf(w, "%s: %d profile, %d mdev, %d vm overrides\n",
		overridePath, len(overrides.Profile), len(overrides.Mdev), len(overrides.VM))

	var names []string
	for name := range overrides.Profile {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !profileNameRE.MatchString(name) {
			fmt.Fprintf(w, "warning: profile %q never matches, profile names look like nvidia-<type id>\n", name)
		}
	}
}
