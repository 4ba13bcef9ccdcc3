// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package equality

import (
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

// Flags select the attributes of a tree
// that are ignored by comparison and hashing.
type Flags uint8

const (
	// IgnoreLabelName ignores the names of label targets.
	IgnoreLabelName Flags = 1 << iota
	// IgnoreLambdaName ignores the names of lambdas.
	IgnoreLambdaName
	// IgnoreLambdaType ignores the func type of
	// lambdas, but not their result types.
	IgnoreLambdaType
	// IgnoreParameterName ignores the names of
	// parameters and block variables.
	IgnoreParameterName

	// DefaultFlags is the set of flags
	// used by Equal and Hash.
	DefaultFlags = IgnoreLabelName | IgnoreLambdaName | IgnoreLambdaType | IgnoreParameterName
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{IgnoreLabelName, "IgnoreLabelName"},
	{IgnoreLambdaName, "IgnoreLambdaName"},
	{IgnoreLambdaType, "IgnoreLambdaType"},
	{IgnoreParameterName, "IgnoreParameterName"},
}

func (f Flags) String() string {
	var parts []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, ",")
}

// MarshalText implements encoding.TextMarshaler.
func (f Flags) MarshalText() ([]byte, error) {
	if f&^DefaultFlags != 0 {
		return nil, fmt.Errorf("equality: invalid flags %#x", uint8(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// The text is a comma-separated list of flag
// names; "default" stands for DefaultFlags and
// "none" or the empty string for no flags.
func (f *Flags) UnmarshalText(text []byte) error {
	var out Flags
	for _, part := range strings.Split(string(text), ",") {
		part = strings.TrimSpace(part)
		switch strings.ToLower(part) {
		case "", "none":
			continue
		case "default":
			out |= DefaultFlags
			continue
		}
		found := false
		for _, fn := range flagNames {
			if strings.EqualFold(part, fn.name) {
				out |= fn.flag
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("equality: unknown flag %q", part)
		}
	}
	*f = out
	return nil
}

// Config is the serialized form
// of a Comparer's configuration.
type Config struct {
	// Flags is the set of ignored attributes.
	// A missing value means DefaultFlags.
	Flags *Flags `json:"flags,omitempty"`
}

// Comparer returns a Comparer configured by c.
func (c *Config) Comparer() *Comparer {
	if c.Flags == nil {
		return New(DefaultFlags)
	}
	return New(*c.Flags)
}

// ParseConfig parses a YAML (or JSON)
// Config and returns the Comparer it describes:
//
//	flags: IgnoreParameterName,IgnoreLambdaName
func ParseConfig(data []byte) (*Comparer, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("equality: parsing config: %w", err)
	}
	return c.Comparer(), nil
}
