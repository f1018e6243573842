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
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
)

type driverVersion struct {
	major int
	minor int
	patch int
}

func driverVersionFrom(version string) (driverVersion, error) {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return driverVersion{}, fmt.Errorf("invalid format of version string %q", version)
	}
	var (
		res driverVersion
		err error
	)
	res.major, err = strconv.Atoi(parts[0])
	if err != nil {
		return driverVersion{}, fmt.Errorf("invalid format for major version %q: %v", version, err)
	}
	res.minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return driverVersion{}, fmt.Errorf("invalid format for minor version %q: %v", version, err)
	}
	res.patch, err = strconv.Atoi(parts[2])
	if err != nil {
		return driverVersion{}, fmt.Errorf("invalid format for patch version %q: %v", version, err)
	}
	return res, nil
}

func (v driverVersion) String() string {
	return fmt.Sprintf("%d.%d.%02d", v.major, v.minor, v.patch)
}

func (v driverVersion) isGreaterThan(v2 driverVersion) bool {
	return v.isGreaterThanImpl(false /* orEqual */, v2)
}

func (v driverVersion) isGreaterThanOrEqual(v2 driverVersion) bool {
	return v.isGreaterThanImpl(true /* orEqual */, v2)
}

func (v driverVersion) isGreaterThanImpl(orEqual bool, v2 driverVersion) bool {
	if v.major > v2.major {
		return true
	}
	if v.major < v2.major {
		return false
	}
	if v.minor > v2.minor {
		return true
	}
	if v.minor < v2.minor {
		return false
	}
	if v.patch > v2.patch {
		return true
	}
	if v.patch < v2.patch {
		return false
	}
	return orEqual
}

// controlTable is used to hold all control command handlers.
//
// Handlers are keyed by NVOS54_PARAMETERS.Cmd, except for vGPU type info
// queries, which are keyed by command and parameter size because a single
// command returns a different layout on every major driver release.
type controlTable struct {
	// spoof handlers run after every call to a known command, whatever the
	// status.
	spoof map[uint32]controlCmdHandler
	// result handlers run only when the driver reports NV_OK.
	result map[uint32]controlCmdHandler
	// typeInfo selects the layout of a type info query.
	typeInfo map[typeInfoKey]*typeInfoLayout
	// launder rewrites non-OK statuses.
	launder map[uint32]statusRewrite
}

type typeInfoKey struct {
	cmd  uint32
	size uint32
}

// buildControlTable builds a controlTable for a given driver version.
func buildControlTable(versionStr string) (controlTable, error) {
	version, err := driverVersionFrom(versionStr)
	if err != nil {
		return controlTable{}, err
	}
	if !version.isGreaterThanOrEqual(baseVersion) {
		return controlTable{}, fmt.Errorf("%s is unsupported; minimum supported version is %s", version, baseVersion)
	}
	return controlTableFor(version), nil
}

func controlTableFor(version driverVersion) controlTable {
	var res controlTable
	for _, cur := range versioningTable {
		if cur.version.isGreaterThan(version) {
			break
		}
		res.apply(cur.handlers)
	}
	return res
}

// allReleases returns the handlers of every supported release. The hook does
// not know which driver it is loaded next to, and no release removes a
// command or a layout, so the newest table accepts them all.
func allReleases() controlTable {
	return controlTableFor(versioningTable[len(versioningTable)-1].version)
}

func applyDiff[K comparable, V any](dst *map[K]V, diff map[K]V, isNil func(V) bool) {
	if diff == nil {
		return
	}
	if *dst == nil {
		*dst = make(map[K]V)
	}
	for k, v := range diff {
		if isNil(v) {
			delete(*dst, k)
		} else {
			(*dst)[k] = v
		}
	}
}

func (c *controlTable) apply(diff controlTable) {
	applyDiff(&c.spoof, diff.spoof, controlCmdHandler.isNil)
	applyDiff(&c.result, diff.result, controlCmdHandler.isNil)
	applyDiff(&c.typeInfo, diff.typeInfo, func(l *typeInfoLayout) bool { return l == nil })
	applyDiff(&c.launder, diff.launder, func(r statusRewrite) bool { return r == nil })
}

// versionDiff is used to represent the changes made in a given Nvidia driver
// version, compared to the previous entry of such a diff. The diff supports
// three kinds of operations:
//  1. Add: When a non-nil handler is defined and the previous version doesn't
//     have a handler.
//  2. Update: When a non-nil handler is defined and the previous version also
//     defines a handler which will be overwritten.
//  3. Delete: When a nil handler is defined. The previous handler will be
//     deleted if specified.
type versionDiff struct {
	version  driverVersion
	handlers controlTable
}

// versioningTable is a sparse version table which stitches various diff
// together (with strictly increasing driver versions). This can be used to
// calculate the resulting handlers for a given version.
var versioningTable = []versionDiff{
	baseVersionDiff,
	diffR510_47_03,
	diffR525_60_12,
	diffR550_54_10,
	diffR570_86_10,
}

// The base version is the earliest host driver version supported, the vGPU
// 12.0 release.
var baseVersion = driverVersion{460, 32, 04}

// Since there is no previous diff to compare with, the base diff contains the
// entirety of the functionality supported at this version.
var baseVersionDiff = versionDiff{
	version: baseVersion,
	handlers: controlTable{
		spoof: map[uint32]controlCmdHandler{
			nvgpu.NV2080_CTRL_CMD_BUS_GET_PCI_INFO:              {size: nvgpu.SizeofBusGetPCIInfoParams, fn: busGetPCIInfo},
			nvgpu.NV0080_CTRL_CMD_GPU_GET_VIRTUALIZATION_MODE:   {size: nvgpu.SizeofGetVirtualizationModeMin, atLeast: true, fn: gpuGetVirtualizationMode},
			nvgpu.NVA081_CTRL_CMD_VGPU_CONFIG_GET_MIGRATION_CAP: {size: nvgpu.SizeofGetMigrationCapParams, atLeast: true, fn: vgpuConfigGetMigrationCap},
		},
		result: map[uint32]controlCmdHandler{
			nvgpu.NV0000_CTRL_CMD_VGPU_GET_START_DATA: {size: nvgpu.SizeofVgpuGetStartDataParams, fn: vgpuGetStartData},
		},
		typeInfo: map[typeInfoKey]*typeInfoLayout{
			{nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO, nvgpu.SizeofVgpuConfig}: &legacyVgpuConfig,
		},
		launder: map[uint32]statusRewrite{
			nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_0104:          launderToOK,
			nvgpu.NV9096_CTRL_CMD_GET_ZBC_CLEAR_TABLE:            launderToOK,
			nvgpu.NV2080_CTRL_CMD_GPU_GET_INFOROM_OBJECT_VERSION: launderNotSupported,
		},
	},
}

var diffR510_47_03 = versionDiff{
	version: driverVersion{510, 47, 03},
	handlers: controlTable{
		typeInfo: map[typeInfoKey]*typeInfoLayout{
			{nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO, nvgpu.SizeofHostVgpuDeviceTypeInfo}: &hostVgpuDeviceTypeInfo,
		},
	},
}

var diffR525_60_12 = versionDiff{
	version: driverVersion{525, 60, 12},
	handlers: controlTable{
		typeInfo: map[typeInfoKey]*typeInfoLayout{
			{nvgpu.NVA081_CTRL_CMD_VGPU_CONFIG_GET_VGPU_TYPE_INFO, nvgpu.SizeofVgpuConfigGetTypeInfo}: &vgpuConfigTypeInfo,
		},
	},
}

var diffR550_54_10 = versionDiff{
	version: driverVersion{550, 54, 10},
	handlers: controlTable{
		result: map[uint32]controlCmdHandler{
			nvgpu.NV0000_CTRL_CMD_VGPU_CREATE_DEVICE: {size: nvgpu.SizeofVgpuCreateDeviceParams, atLeast: true, fn: vgpuCreateDevice},
		},
		typeInfo: map[typeInfoKey]*typeInfoLayout{
			{nvgpu.NVA081_CTRL_CMD_VGPU_CONFIG_GET_VGPU_TYPE_INFO, nvgpu.SizeofVgpuConfigGetTypeInfoV550}: &vgpuConfigTypeInfo,
		},
	},
}

var diffR570_86_10 = versionDiff{
	version: driverVersion{570, 86, 10},
	handlers: controlTable{
		typeInfo: map[typeInfoKey]*typeInfoLayout{
			{nvgpu.NVA081_CTRL_CMD_VGPU_CONFIG_GET_VGPU_TYPE_INFO, nvgpu.SizeofVgpuConfigGetTypeInfoV570}: &vgpuConfigTypeInfo,
		},
	},
}

// CommandInfo describes one control command handled for a driver release.
type CommandInfo struct {
	Cmd  uint32
	Name string
	// Pass is "spoof", "result", "type info" or "launder".
	Pass string
	// Size is the required parameter size. Zero means any size.
	Size    uint32
	AtLeast bool
	// Layout names the type info layout selected by Size, if any.
	Layout string
}

// Commands lists the control commands handled for the given driver version,
// ordered by pass, command and size.
func Commands(version string) ([]CommandInfo, error) {
	t, err := buildControlTable(version)
	if err != nil {
		return nil, err
	}
	var res []CommandInfo
	for cmd, h := range t.spoof {
		res = append(res, CommandInfo{Cmd: cmd, Name: CommandName(cmd), Pass: "spoof", Size: h.size, AtLeast: h.atLeast})
	}
	for cmd, h := range t.result {
		res = append(res, CommandInfo{Cmd: cmd, Name: CommandName(cmd), Pass: "result", Size: h.size, AtLeast: h.atLeast})
	}
	for k, l := range t.typeInfo {
		res = append(res, CommandInfo{Cmd: k.cmd, Name: CommandName(k.cmd), Pass: "type info", Size: k.size, Layout: l.name})
	}
	for cmd := range t.launder {
		res = append(res, CommandInfo{Cmd: cmd, Name: CommandName(cmd), Pass: "launder"})
	}
	passOrder := map[string]int{"spoof": 0, "result": 1, "type info": 2, "launder": 3}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if a.Pass != b.Pass {
			return passOrder[a.Pass] < passOrder[b.Pass]
		}
		if a.Cmd != b.Cmd {
			return a.Cmd < b.Cmd
		}
		return a.Size < b.Size
	})
	return res, nil
}

// SupportedVersions returns the driver releases that changed the handled
// commands, oldest first.
func SupportedVersions() []string {
	res := make([]string, 0, len(versioningTable))
	for _, d := range versioningTable {
		res = append(res, d.version.String())
	}
	return res
}
