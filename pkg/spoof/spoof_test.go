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

package spoof

import "testing"

func TestSpoof(t *testing.T) {
	for _, tc := range []struct {
		name          string
		device, sub   ID
		wantDev, want ID
	}{
		{"pascal keeps subsystem", 0x1b00, 0x1234, 0x1b38, 0x1234},
		{"turing replaces subsystem", 0x1e50, 0x1234, 0x1e30, 0x12ba},
		{"unknown passes through", 0x0010, 0x4321, 0x0010, 0x4321},
		{"maxwell", 0x1340, 0x1, 0x13bd, 0x1160},
		{"maxwell upper bound", 0x179c, 0x1, 0x13bd, 0x1160},
		{"maxwell 2.0", 0x17c2, 0x77, 0x13f2, 0x77},
		{"pascal exact", 0x15f1, 0x77, 0x1b38, 0x77},
		{"pascal gap", 0x15f2, 0x77, 0x15f2, 0x77},
		{"titan v", 0x1d81, 0x77, 0x1db6, 0x77},
		{"quadro gv100", 0x1dba, 0x77, 0x1db6, 0x77},
		{"turing tu11x", 0x21c4, 0x77, 0x1e30, 0x12ba},
		{"ampere", 0x2204, 0x77, 0x2230, 0x77},
		{"after ampere", 0x2601, 0x77, 0x2601, 0x77},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dev, sub := Spoof(tc.device, tc.sub)
			if dev != tc.wantDev || sub != tc.want {
				t.Errorf("Spoof(%#x, %#x) = (%#x, %#x), want (%#x, %#x)", tc.device, tc.sub, dev, sub, tc.wantDev, tc.want)
			}
		})
	}
}

// Every ID inside a declared range maps to that entry's device, and every ID
// outside all ranges is returned unchanged.
func TestSpoofExhaustive(t *testing.T) {
	const sub = ID(0xbeef)
	for i := 0; i <= 0xffff; i++ {
		id := ID(i)
		var want *Entry
	search:
		for j := range Table {
			for _, r := range Table[j].Ranges {
				if r.First <= id && id <= r.Last {
					want = &Table[j]
					break search
				}
			}
		}
		dev, gotSub := Spoof(id, sub)
		switch {
		case want == nil:
			if dev != id || gotSub != sub {
				t.Fatalf("Spoof(%#x) = (%#x, %#x), want identity", id, dev, gotSub)
			}
		case want.KeepSubsystem:
			if dev != want.Device || gotSub != sub {
				t.Fatalf("Spoof(%#x) = (%#x, %#x), want (%#x, %#x)", id, dev, gotSub, want.Device, sub)
			}
		default:
			if dev != want.Device || gotSub != want.Subsystem {
				t.Fatalf("Spoof(%#x) = (%#x, %#x), want (%#x, %#x)", id, dev, gotSub, want.Device, want.Subsystem)
			}
		}
	}
}

func TestRangesDisjoint(t *testing.T) {
	var all []Range
	for _, e := range Table {
		for _, r := range e.Ranges {
			if r.First > r.Last {
				t.Errorf("%s: range %#x-%#x is inverted", e.Family, r.First, r.Last)
			}
			for _, o := range all {
				if r.First <= o.Last && o.First <= r.Last {
					t.Errorf("%s: range %#x-%#x overlaps %#x-%#x", e.Family, r.First, r.Last, o.First, o.Last)
				}
			}
			all = append(all, r)
		}
	}
}

func TestWords(t *testing.T) {
	w := uint32(0x1e5010de)
	if got := DeviceFromWord(w); got != 0x1e50 {
		t.Errorf("DeviceFromWord(%#x) = %#x, want 0x1e50", w, got)
	}
	if got := ReplaceInWord(w, 0x1e30); got != 0x1e3010de {
		t.Errorf("ReplaceInWord(%#x, 0x1e30) = %#x, want 0x1e3010de", w, got)
	}
}
