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

// Package config loads the global vgpu_unlock configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/units"
)

// DefaultPath is where the global configuration is read from.
const DefaultPath = "/etc/vgpu_unlock/config.toml"

// PCIInfo is a device/subsystem ID pair reported in place of the real one.
type PCIInfo struct {
	DeviceID    uint16 `toml:"device_id"`
	SubSystemID uint16 `toml:"sub_system_id"`
}

// Config is the global configuration.
type Config struct {
	// Unlock enables the PCI identity spoof and forces host virtualization
	// mode.
	Unlock bool `toml:"unlock"`

	// UnlockMigration forces the migration capability on.
	UnlockMigration bool `toml:"unlock_migration"`

	// PCIInfoMap maps a real device ID to the identity reported for it. Keys
	// accept decimal, 0x and 0b notation.
	PCIInfoMap map[string]PCIInfo `toml:"pci_info_map"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Unlock:          true,
		UnlockMigration: false,
	}
}

// Load reads the configuration file at path. A missing or unreadable file
// yields Default; only a file that fails to decode is an error. Unknown keys
// and an invalid pci_info_map are logged and otherwise ignored.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
			log.Warningf("Failed to read config %s, using defaults: %v", path, err)
		}
		return Default(), nil
	}
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		log.Warningf("Ignoring unknown keys in %s: %v", path, keys)
	}
	if _, err := c.PCIInfo(); err != nil {
		log.Warningf("Invalid pci_info_map in %s: %v", path, err)
	}
	return c, nil
}

// PCIInfo returns PCIInfoMap with its keys parsed as device IDs.
func (c *Config) PCIInfo() (map[uint16]PCIInfo, error) {
	m := make(map[uint16]PCIInfo, len(c.PCIInfoMap))
	for k, v := range c.PCIInfoMap {
		id, err := units.ParseUint(k, 16)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		if _, ok := m[uint16(id)]; ok {
			return nil, fmt.Errorf("key %q: duplicate device id %#04x", k, id)
		}
		m[uint16(id)] = v
	}
	return m, nil
}
