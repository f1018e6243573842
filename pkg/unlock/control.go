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

// Package unlock implements the ioctl hook that makes the NVIDIA vGPU host
// daemons accept consumer GPUs, and applies vGPU profile overrides.
package unlock

import (
	"fmt"
	"time"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/config"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/log"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/override"
	"github.com/vgpu-unlock/vgpu_unlock/pkg/spoof"
)

// controlCmdHandler patches the parameters of one control command. fn is
// only called once the parameter size has been checked against size.
type controlCmdHandler struct {
	size    uint32
	atLeast bool
	fn      func(d *Dispatcher, ctl *nvgpu.NVOS54Parameters) error
}

func (h controlCmdHandler) isNil() bool {
	return h.fn == nil
}

func (h controlCmdHandler) accepts(size uint32) bool {
	if h.atLeast {
		return size >= h.size
	}
	return size == h.size
}

// typeInfoLayout is one vGPU type info parameter layout.
type typeInfoLayout struct {
	name string
	// view returns the embedded vGPU configuration. The parameter size has
	// already been matched against the layout.
	view func(ctl *nvgpu.NVOS54Parameters) nvgpu.VGPUConfigLike
}

var (
	legacyVgpuConfig = typeInfoLayout{
		name: "VgpuConfig",
		view: func(ctl *nvgpu.NVOS54Parameters) nvgpu.VGPUConfigLike {
			return paramsAs[nvgpu.VgpuConfig](ctl)
		},
	}
	hostVgpuDeviceTypeInfo = typeInfoLayout{
		name: "NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS",
		view: func(ctl *nvgpu.NVOS54Parameters) nvgpu.VGPUConfigLike {
			return paramsAs[nvgpu.NVA082_CTRL_CMD_HOST_VGPU_DEVICE_GET_VGPU_TYPE_INFO_PARAMS](ctl)
		},
	}
	// Newer releases append fields after the R525 layout; those trailing
	// bytes are never read.
	vgpuConfigTypeInfo = typeInfoLayout{
		name: "NVA081_CTRL_VGPU_CONFIG_GET_VGPU_TYPE_INFO_PARAMS",
		view: func(ctl *nvgpu.NVOS54Parameters) nvgpu.VGPUConfigLike {
			return &paramsAs[nvgpu.NVA081_CTRL_VGPU_CONFIG_GET_VGPU_TYPE_INFO_PARAMS](ctl).VGPUTypeInfo
		},
	}
)

// statusRewrite returns the status to report in place of a failed one, and
// whether to rewrite it at all.
type statusRewrite func(status uint32) (uint32, bool)

// launderToOK reports success for commands that fail harmlessly.
func launderToOK(uint32) (uint32, bool) {
	return nvgpu.NV_OK, true
}

// launderNotSupported turns NV_ERR_NOT_SUPPORTED into
// NV_ERR_OBJECT_NOT_FOUND. GPUs without an InfoROM report the former, which
// nvidia-vgpu-mgr treats as fatal; it handles the latter gracefully.
func launderNotSupported(status uint32) (uint32, bool) {
	if status == nvgpu.NV_ERR_NOT_SUPPORTED {
		return nvgpu.NV_ERR_OBJECT_NOT_FOUND, true
	}
	return status, false
}

// OverrideLoader loads the profile override configuration. It is called once
// for every vGPU type info query.
type OverrideLoader func() (*override.Config, error)

// Dispatcher inspects completed RM control calls and patches their results.
type Dispatcher struct {
	cfg       *config.Config
	table     controlTable
	session   *Session
	overrides OverrideLoader

	// failures logs failed commands at error level. nvidia-vgpud polls some
	// commands that fail on every unsupported GPU, so it is rate limited;
	// every failure is also logged at debug level.
	failures log.Logger
}

// NewDispatcher returns a Dispatcher handling the commands of every
// supported driver release.
func NewDispatcher(cfg *config.Config, session *Session, overrides OverrideLoader) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		table:     allReleases(),
		session:   session,
		overrides: overrides,
		failures:  log.BasicRateLimitedLogger(100 * time.Millisecond),
	}
}

// Dispatch patches the parameters of a completed RM control call in place.
// An error means that the result must not reach the caller.
func (d *Dispatcher) Dispatch(ctl *nvgpu.NVOS54Parameters) error {
	if h, ok := d.table.spoof[ctl.Cmd]; ok {
		if err := d.run(h, ctl); err != nil {
			return err
		}
	}

	if ctl.Status != nvgpu.NV_OK {
		d.launder(ctl)
		return nil
	}

	if h, ok := d.table.result[ctl.Cmd]; ok {
		return d.run(h, ctl)
	}
	if l, ok := d.table.typeInfo[typeInfoKey{ctl.Cmd, ctl.ParamsSize}]; ok {
		return d.applyOverrides(l, ctl)
	}
	if d.isTypeInfoCmd(ctl.Cmd) {
		log.Warningf("%s: unsupported params size %d, profile overrides not applied", CommandName(ctl.Cmd), ctl.ParamsSize)
	}
	return nil
}

func (d *Dispatcher) run(h controlCmdHandler, ctl *nvgpu.NVOS54Parameters) error {
	if ctl.Params == 0 || !h.accepts(ctl.ParamsSize) {
		log.Debugf("%s: unexpected params size %d, skipping", CommandName(ctl.Cmd), ctl.ParamsSize)
		return nil
	}
	return h.fn(d, ctl)
}

func (d *Dispatcher) isTypeInfoCmd(cmd uint32) bool {
	for k := range d.table.typeInfo {
		if k.cmd == cmd {
			return true
		}
	}
	return false
}

func (d *Dispatcher) launder(ctl *nvgpu.NVOS54Parameters) {
	if rewrite, ok := d.table.launder[ctl.Cmd]; ok {
		if status, ok := rewrite(ctl.Status); ok {
			log.Debugf("%s: rewriting status %#x -> %#x", CommandName(ctl.Cmd), ctl.Status, status)
			ctl.Status = status
			return
		}
	}
	log.Debugf("%s failed: status %#x, client %#x, object %#x, params size %d",
		CommandName(ctl.Cmd), ctl.Status, ctl.HClient, ctl.HObject, ctl.ParamsSize)
	d.failures.Errorf("%s failed: status %#x", CommandName(ctl.Cmd), ctl.Status)
}

// applyOverrides applies the profile overrides matching a type info query,
// consuming the remembered mdev UUID.
func (d *Dispatcher) applyOverrides(l *typeInfoLayout, ctl *nvgpu.NVOS54Parameters) error {
	if ctl.Params == 0 {
		return nil
	}
	view := l.view(ctl)
	mdev, _ := d.session.Take()
	log.Infof("%s: %s", l.name, view.ConfigFields())

	cfg, err := d.overrides()
	if err != nil {
		log.Errorf("Failed to load profile overrides: %v", err)
		return err
	}
	if err := cfg.ApplyMatches(view, mdev); err != nil {
		return fmt.Errorf("failed to apply profile overrides: %w", err)
	}
	return nil
}

func busGetPCIInfo(d *Dispatcher, ctl *nvgpu.NVOS54Parameters) error {
	if !d.cfg.Unlock {
		return nil
	}
	p := paramsAs[nvgpu.NV2080_CTRL_BUS_GET_PCI_INFO_PARAMS](ctl)
	device := spoof.DeviceFromWord(p.PCIDeviceID)
	subsystem := spoof.DeviceFromWord(p.PCISubSystemID)
	newDevice, newSubsystem := spoof.Spoof(device, subsystem)
	if newDevice == device && newSubsystem == subsystem {
		return nil
	}
	log.Infof("Spoofing PCI device %#04x/%#04x as %#04x/%#04x", device, subsystem, newDevice, newSubsystem)
	p.PCIDeviceID = spoof.ReplaceInWord(p.PCIDeviceID, newDevice)
	p.PCISubSystemID = spoof.ReplaceInWord(p.PCISubSystemID, newSubsystem)
	return nil
}

func gpuGetVirtualizationMode(d *Dispatcher, ctl *nvgpu.NVOS54Parameters) error {
	if !d.cfg.Unlock {
		return nil
	}
	mode := paramsAs[uint32](ctl)
	if *mode != nvgpu.NV0080_CTRL_GPU_VIRTUALIZATION_MODE_HOST {
		log.Debugf("Forcing virtualization mode %d -> %d", *mode, nvgpu.NV0080_CTRL_GPU_VIRTUALIZATION_MODE_HOST)
	}
	*mode = nvgpu.NV0080_CTRL_GPU_VIRTUALIZATION_MODE_HOST
	return nil
}

func vgpuConfigGetMigrationCap(d *Dispatcher, ctl *nvgpu.NVOS54Parameters) error {
	if !d.cfg.UnlockMigration {
		return nil
	}
	*paramsAs[uint8](ctl) = 1
	return nil
}

func vgpuGetStartData(d *Dispatcher, ctl *nvgpu.NVOS54Parameters) error {
	p := paramsAs[nvgpu.NV0000_CTRL_VGPU_GET_START_DATA_PARAMS](ctl)
	log.Infof("%s", p)
	d.session.Store(p.MdevUUID)
	return nil
}

func vgpuCreateDevice(d *Dispatcher, ctl *nvgpu.NVOS54Parameters) error {
	p := paramsAs[nvgpu.NV0000_CTRL_VGPU_CREATE_DEVICE_PARAMS](ctl)
	log.Infof("%s", p)
	d.session.Store(p.VGPUName)
	return nil
}
