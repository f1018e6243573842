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

// Package units decodes the numeric encodings accepted in configuration
// files: flexible integers ("42", "0x2a", "0b101010") and human readable
// byte sizes ("8GiB", "512 MB").
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// ParseUint parses s as a decimal, 0x-prefixed hexadecimal or 0b-prefixed
// binary unsigned integer that fits in bitSize bits. Surrounding whitespace
// is ignored.
func ParseUint(s string, bitSize int) (uint64, error) {
	s = strings.TrimSpace(s)
	digits, base := s, 10
	if len(s) >= 2 {
		switch strings.ToLower(s[:2]) {
		case "0x":
			digits, base = s[2:], 16
		case "0b":
			digits, base = s[2:], 2
		}
	}
	v, err := strconv.ParseUint(digits, base, bitSize)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q as base-%d integer: %w", s, base, err)
	}
	return v, nil
}

// ParseSize parses a byte size. A bare number is a count of bytes. The
// suffixes kB/KB, MB, GB and TB are powers of 1000; KiB, MiB, GiB and TiB are
// powers of 1024.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	var (
		n   int64
		err error
	)
	if strings.Contains(strings.ToLower(s), "i") {
		n, err = units.RAMInBytes(s)
	} else {
		n, err = units.FromHumanSize(s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: negative", s)
	}
	return uint64(n), nil
}

// Number is an unsigned integer that decodes from either a TOML/YAML integer
// or a string accepted by ParseUint.
type Number uint64

// Get returns the value and whether it is set. It is safe to call on a nil
// receiver.
func (n *Number) Get() (uint64, bool) {
	if n == nil {
		return 0, false
	}
	return uint64(*n), true
}

// UnmarshalTOML implements toml.Unmarshaler.UnmarshalTOML.
func (n *Number) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("negative number %d", v)
		}
		*n = Number(v)
	case string:
		u, err := ParseUint(v, 64)
		if err != nil {
			return err
		}
		*n = Number(u)
	default:
		return fmt.Errorf("expected unsigned number or string, got %T", data)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.UnmarshalYAML.
func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar number", node.Line)
	}
	u, err := ParseUint(node.Value, 64)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*n = Number(u)
	return nil
}

// FitsUint32 reports whether n can be stored in a 32-bit field.
func (n *Number) FitsUint32() bool {
	return n == nil || uint64(*n) <= math.MaxUint32
}

// Size is a byte count that decodes from either an integer or a string
// accepted by ParseSize.
type Size uint64

// Get returns the value and whether it is set. It is safe to call on a nil
// receiver.
func (s *Size) Get() (uint64, bool) {
	if s == nil {
		return 0, false
	}
	return uint64(*s), true
}

// UnmarshalTOML implements toml.Unmarshaler.UnmarshalTOML.
func (s *Size) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case int64:
		if v < 0 {
			return fmt.Errorf("negative size %d", v)
		}
		*s = Size(v)
	case float64:
		if v < 0 {
			return fmt.Errorf("negative size %v", v)
		}
		*s = Size(math.Round(v))
	case string:
		u, err := ParseSize(v)
		if err != nil {
			return err
		}
		*s = Size(u)
	default:
		return fmt.Errorf("expected unsigned number or quoted human-readable size, got %T", data)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.UnmarshalYAML.
func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar size", node.Line)
	}
	u, err := ParseSize(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = Size(u)
	return nil
}
