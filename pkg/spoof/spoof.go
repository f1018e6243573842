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

// Package spoof maps the PCI device IDs of consumer and workstation Nvidia
// GPUs onto the IDs of a vGPU capable board of the same architecture.
package spoof

import "fmt"

// ID is a 16-bit PCI device or subsystem ID.
type ID uint16

// Range is an inclusive range of device IDs.
type Range struct {
	First ID
	Last  ID
}

func (r Range) contains(id ID) bool {
	return r.First <= id && id <= r.Last
}

// single returns a Range matching exactly one device ID.
func single(id ID) Range {
	return Range{id, id}
}

// Entry maps a family of device IDs onto the device ID of a vGPU capable
// board. If KeepSubsystem is false the subsystem ID is replaced with
// Subsystem.
type Entry struct {
	Family        string
	Target        string
	Ranges        []Range
	Device        ID
	Subsystem     ID
	KeepSubsystem bool
}

// Table is checked in order; the first entry with a matching range wins.
var Table = []Entry{
	{
		Family:    "Maxwell",
		Target:    "Tesla M10",
		Ranges:    []Range{{0x1340, 0x13bd}, {0x174d, 0x179c}},
		Device:    0x13bd,
		Subsystem: 0x1160,
	},
	{
		Family:        "Maxwell 2.0",
		Target:        "Tesla M60",
		Ranges:        []Range{{0x13c0, 0x1436}, {0x1617, 0x1667}, {0x17c2, 0x17fd}},
		Device:        0x13f2,
		KeepSubsystem: true,
	},
	{
		Family:        "Pascal",
		Target:        "Tesla P40",
		Ranges:        []Range{single(0x15f0), single(0x15f1), {0x1b00, 0x1d56}, {0x1725, 0x172f}},
		Device:        0x1b38,
		KeepSubsystem: true,
	},
	{
		// 0x1d81 is TITAN V, 0x1dba is Quadro GV100 32GB.
		Family:        "Volta GV100",
		Target:        "Tesla V100 32GB PCIE",
		Ranges:        []Range{single(0x1d81), single(0x1dba)},
		Device:        0x1db6,
		KeepSubsystem: true,
	},
	{
		Family:    "Turing",
		Target:    "Quadro RTX 6000",
		Ranges:    []Range{{0x1e02, 0x1ff9}, {0x2182, 0x21d1}},
		Device:    0x1e30,
		Subsystem: 0x12ba,
	},
	{
		Family:        "Ampere",
		Target:        "RTX A6000",
		Ranges:        []Range{{0x2200, 0x2600}},
		Device:        0x2230,
		KeepSubsystem: true,
	},
}

// Lookup returns the table entry matching device, if any.
func Lookup(device ID) (*Entry, bool) {
	for i := range Table {
		for _, r := range Table[i].Ranges {
			if r.contains(device) {
				return &Table[i], true
			}
		}
	}
	return nil, false
}

// Spoof returns the device and subsystem IDs to report for a GPU whose
// actual IDs are device and subsystem. IDs outside every known family are
// returned unchanged.
func Spoof(device, subsystem ID) (ID, ID) {
	e, ok := Lookup(device)
	if !ok {
		return device, subsystem
	}
	if e.KeepSubsystem {
		return e.Device, subsystem
	}
	return e.Device, e.Subsystem
}

// String implements fmt.Stringer.String.
func (e *Entry) String() string {
	sub := "passthrough"
	if !e.KeepSubsystem {
		sub = fmt.Sprintf("%#04x", uint16(e.Subsystem))
	}
	return fmt.Sprintf("%s -> %s (device %#04x, subsystem %s)", e.Family, e.Target, uint16(e.Device), sub)
}

// PCI info words carry the vendor ID in the low 16 bits and the device (or
// subsystem) ID in the high 16 bits.

// DeviceFromWord extracts the device ID from a PCI info word.
func DeviceFromWord(w uint32) ID {
	return ID(w >> 16)
}

// ReplaceInWord returns w with its ID half replaced by id.
func ReplaceInWord(w uint32, id ID) uint32 {
	return w&0xffff | uint32(id)<<16
}
