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
	"sync"

	"github.com/vgpu-unlock/vgpu_unlock/pkg/abi/nvgpu"
)

// Session remembers the mdev UUID of the most recently started vGPU until the
// next type info query consumes it.
//
// Only one UUID is kept; a second start before a query replaces the first.
type Session struct {
	mu   sync.Mutex
	mdev *nvgpu.UUID
}

// Store remembers u.
func (s *Session) Store(u nvgpu.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mdev = &u
}

// Take returns the remembered UUID and forgets it. It returns nil, false if
// none is remembered.
func (s *Session) Take() (*nvgpu.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.mdev
	s.mdev = nil
	return u, u != nil
}
