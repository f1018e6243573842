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

// Binary vgpuctl inspects vgpu_unlock configuration without loading the hook
// into an NVIDIA daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/config"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/override"
)

var (
	configPath   = flag.String("config", config.DefaultPath, "path to the global configuration file")
	overridePath = flag.String("profile_override", "", "path to the profile override file (default $"+override.EnvPath+" or "+override.DefaultPath+")")
	debug        = flag.Bool("debug", false, "enable debug logging")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&check{}, "")
	subcommands.Register(&spoofCmd{}, "")
	subcommands.Register(&layouts{}, "")
	subcommands.Register(&preview{}, "")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	level := log.Info
	if *debug {
		level = log.Debug
	}
	log.SetTarget(log.NewBasicLogger(log.NewStderr(), level))

	os.Exit(int(subcommands.Execute(context.Background())))
}

// overrideFile returns the profile override file to use.
func overrideFile() string {
	if *overridePath != "" {
		return *overridePath
	}
	return override.Path()
}

// errorf prints an error message to stderr and returns ExitFailure.
func errorf(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "vgpuctl: "+format+"\n", args...)
	return subcommands.ExitFailure
}
