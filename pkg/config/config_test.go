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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
)

func recordLogs(t *testing.T) *log.Recorder {
	t.Helper()
	r := &log.Recorder{}
	old := log.SetTarget(r)
	t.Cleanup(func() { log.SetTarget(old) })
	return r
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write %q: %v", path, err)
	}
	return path
}

func TestLoadMissing(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load returned unexpected config (-want +got):\n%s", diff)
	}
	if !c.Unlock || c.UnlockMigration {
		t.Errorf("defaults: unlock=%t unlock_migration=%t, want true, false", c.Unlock, c.UnlockMigration)
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
unlock = false
unlock_migration = true

[pci_info_map]
"0x2204" = { device_id = 0x2230, sub_system_id = 0x1459 }
"7942" = { device_id = 0x1e30, sub_system_id = 0x12ba }
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Unlock || !c.UnlockMigration {
		t.Errorf("unlock=%t unlock_migration=%t, want false, true", c.Unlock, c.UnlockMigration)
	}
	got, err := c.PCIInfo()
	if err != nil {
		t.Fatalf("PCIInfo failed: %v", err)
	}
	want := map[uint16]PCIInfo{
		0x2204: {DeviceID: 0x2230, SubSystemID: 0x1459},
		7942:   {DeviceID: 0x1e30, SubSystemID: 0x12ba},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PCIInfo mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartial(t *testing.T) {
	c, err := Load(writeFile(t, "unlock_migration = true\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !c.Unlock {
		t.Errorf("unlock should keep its default when absent")
	}
	if !c.UnlockMigration {
		t.Errorf("unlock_migration = false, want true")
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
	}{
		{"syntax", "unlock = \n"},
		{"type", "unlock = \"yes\"\n"},
		{"overflow", "[pci_info_map]\n\"1\" = { device_id = 0x10000 }\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tc.contents)); err == nil {
				t.Errorf("Load succeeded, want error")
			}
		})
	}
}

func TestLoadUnknownKeys(t *testing.T) {
	r := recordLogs(t)
	c, err := Load(writeFile(t, "unlock = false\nfuture_option = 1\n[future_table]\nx = 2\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Unlock {
		t.Errorf("unlock = true, want false")
	}
	lines := r.Lines()
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "W Ignoring unknown keys") || !strings.Contains(lines[0], "future_option") {
		t.Errorf("unexpected log lines: %q", lines)
	}
}

func TestLoadUnreadable(t *testing.T) {
	r := recordLogs(t)
	// Reading a directory fails with EISDIR.
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), c); diff != "" {
		t.Errorf("Load returned unexpected config (-want +got):\n%s", diff)
	}
	if lines := r.Lines(); len(lines) != 1 || !strings.HasPrefix(lines[0], "W Failed to read config") {
		t.Errorf("unexpected log lines: %q", lines)
	}
}

func TestLoadInvalidPCIInfoMap(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
	}{
		{"bad key", "[pci_info_map]\n\"0xzz\" = { device_id = 1, sub_system_id = 2 }\n"},
		{"duplicate key", "[pci_info_map]\n\"16\" = { device_id = 1 }\n\"0x10\" = { device_id = 2 }\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r := recordLogs(t)
			c, err := Load(writeFile(t, tc.contents))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !c.Unlock {
				t.Errorf("unlock = false, want the default")
			}
			if _, err := c.PCIInfo(); err == nil {
				t.Errorf("PCIInfo succeeded, want error")
			}
			if lines := r.Lines(); len(lines) != 1 || !strings.HasPrefix(lines[0], "W Invalid pci_info_map") {
				t.Errorf("unexpected log lines: %q", lines)
			}
		})
	}
}
