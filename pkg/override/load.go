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

package override

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is where overrides are read from unless EnvPath is set.
	DefaultPath = "/etc/vgpu_unlock/profile_override.toml"

	// EnvPath names the environment variable that replaces DefaultPath.
	EnvPath = "VGPU_UNLOCK_PROFILE_OVERRIDE_CONFIG_PATH"
)

// Config holds the override records, keyed three ways.
type Config struct {
	// Profile is keyed by profile name, e.g. "nvidia-55".
	Profile map[string]*Record `toml:"profile" yaml:"profile"`

	// Mdev is keyed by the canonical mdev UUID.
	Mdev map[string]*Record `toml:"mdev" yaml:"mdev"`

	// VM is keyed by the decimal VM id derived from an mdev UUID. It is only
	// consulted in proxmox builds.
	VM map[string]*Record `toml:"vm" yaml:"vm"`

	vmByID map[uint64]*Record
}

// Path returns the override file path, honoring EnvPath.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// LoadDefault loads the override file at Path.
func LoadDefault() (*Config, error) {
	return Load(Path())
}

// Load reads the override file at path. Files ending in .yaml or .yml are
// decoded as YAML, anything else as TOML. A missing file yields an empty
// Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Infof("Config file '%s' not found", path)
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %q: %w", path, err)
	}
	var c *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		c, err = DecodeYAML(data)
	default:
		c, err = DecodeTOML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %q: %w", path, err)
	}
	return c, nil
}

// DecodeTOML parses a TOML override document.
func DecodeTOML(data []byte) (*Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		log.Warningf("Ignoring unknown override keys: %s", strings.Join(keys, ", "))
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecodeYAML parses a YAML override document.
func DecodeYAML(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := c.init(); err != nil {
		return nil, err
	}
	return &c, nil
}

// init validates every record and indexes the VM table.
func (c *Config) init() error {
	for _, table := range []struct {
		name string
		m    map[string]*Record
	}{
		{"profile", c.Profile},
		{"mdev", c.Mdev},
		{"vm", c.VM},
	} {
		for k, r := range table.m {
			if r == nil {
				r = &Record{}
				table.m[k] = r
			}
			if err := r.Validate(); err != nil {
				return fmt.Errorf("%s.%s: %w", table.name, k, err)
			}
		}
	}
	c.vmByID = make(map[uint64]*Record, len(c.VM))
	for k, r := range c.VM {
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil {
			return fmt.Errorf("vm.%s: key is not a decimal VM id: %w", k, err)
		}
		if _, ok := c.vmByID[id]; ok {
			return fmt.Errorf("vm.%s: duplicate VM id %d", k, id)
		}
		c.vmByID[id] = r
	}
	return nil
}

// ProfileName returns the profile table key for a vGPU type.
func ProfileName(vgpuType uint32) string {
	return fmt.Sprintf("nvidia-%d", vgpuType)
}

// ApplyMatches applies every record matching view. The profile record is
// applied first, then the record for mdev, then (in proxmox builds) the
// record for the VM id derived from mdev. Later records win on fields they
// share. mdev may be nil.
func (c *Config) ApplyMatches(view nvgpu.VGPUConfigLike, mdev *nvgpu.UUID) error {
	name := ProfileName(*view.ConfigFields().VGPUType)

	if r, ok := c.Profile[name]; ok {
		log.Infof("Applying profile %s overrides", name)
		if err := Apply(view, name, r); err != nil {
			return err
		}
	}
	if mdev == nil {
		return nil
	}
	if r, ok := c.Mdev[mdev.String()]; ok {
		log.Infof("Applying mdev UUID %s profile overrides", mdev)
		if err := Apply(view, name, r); err != nil {
			return err
		}
	}
	if !vmOverrides {
		return nil
	}
	if id, ok := VMID(*mdev); ok {
		if r, ok := c.vmByID[id]; ok {
			log.Infof("Applying proxmox VMID %d profile overrides", id)
			if err := Apply(view, name, r); err != nil {
				return err
			}
		}
	}
	return nil
}
