// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

package v0

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cast"

	"github.com/rehearse-dev/rehearse/schema"
)

// Matrix describes the axes a job fans out over
//
// Axis keys are arbitrary; "include" and "exclude" are reserved and adjust
// the expanded combinations rather than defining axes.
type Matrix struct {
	Axes    map[string][]any
	Include []schema.Combination
	Exclude []schema.Combination
}

var (
	_ yaml.BytesUnmarshaler   = (*Matrix)(nil)
	_ yaml.InterfaceMarshaler = (*Matrix)(nil)
)

// UnmarshalYAML decodes a matrix, splitting reserved keys from axis definitions
func (m *Matrix) UnmarshalYAML(b []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return err
	}

	for key, val := range raw {
		switch key {
		case "include", "exclude":
			entries, ok := val.([]any)
			if !ok {
				return fmt.Errorf("matrix %s must be a list of mappings", key)
			}
			combos := make([]schema.Combination, 0, len(entries))
			for _, entry := range entries {
				combo, ok := entry.(map[string]any)
				if !ok {
					return fmt.Errorf("matrix %s entries must be mappings", key)
				}
				combos = append(combos, combo)
			}
			if key == "include" {
				m.Include = combos
			} else {
				m.Exclude = combos
			}
		default:
			values, ok := val.([]any)
			if !ok {
				return fmt.Errorf("matrix axis %q must be a list", key)
			}
			if m.Axes == nil {
				m.Axes = make(map[string][]any)
			}
			m.Axes[key] = values
		}
	}

	return nil
}

// MarshalYAML encodes a matrix back into its single-mapping form
func (m Matrix) MarshalYAML() (any, error) {
	raw := make(map[string]any, len(m.Axes)+2)
	for key, values := range m.Axes {
		raw[key] = values
	}
	if len(m.Include) > 0 {
		raw["include"] = m.Include
	}
	if len(m.Exclude) > 0 {
		raw["exclude"] = m.Exclude
	}
	return raw, nil
}

// MarshalJSON mirrors MarshalYAML so structural validation sees the flat form
func (m Matrix) MarshalJSON() ([]byte, error) {
	raw, err := m.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

// JSONSchema overrides reflection, the axis keys are free-form
func (Matrix) JSONSchema() *jsonschema.Schema {
	axis := &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			OneOf: []*jsonschema.Schema{
				{Type: "string"},
				{Type: "boolean"},
				{Type: "integer"},
				{Type: "number"},
			},
		},
	}

	adjustments := &jsonschema.Schema{
		Type: "array",
		Items: &jsonschema.Schema{
			Type: "object",
		},
	}

	s := &jsonschema.Schema{
		Type:        "object",
		Description: "Matrix of axis values the job is instantiated across",
		Properties:  jsonschema.NewProperties(),
		PatternProperties: map[string]*jsonschema.Schema{
			MatrixKeyPattern.String(): axis,
		},
	}
	s.Properties.Set("include", adjustments)
	s.Properties.Set("exclude", adjustments)
	return s
}

// Keys returns the axis names in sorted order
func (m Matrix) Keys() []string {
	keys := make([]string, 0, len(m.Axes))
	for k := range m.Axes {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Expand returns every combination of axis values, after applying
// exclude then include adjustments
//
// The result is deterministic: axes are walked in sorted key order and
// values in definition order.
func (m Matrix) Expand() ([]schema.Combination, error) {
	keys := m.Keys()

	for _, excl := range m.Exclude {
		for key := range excl {
			if _, ok := m.Axes[key]; !ok {
				return nil, fmt.Errorf("matrix exclude key %q is not an axis", key)
			}
		}
	}

	combos := []schema.Combination{}
	if len(keys) > 0 {
		combos = append(combos, schema.Combination{})
		for _, key := range keys {
			next := make([]schema.Combination, 0, len(combos)*len(m.Axes[key]))
			for _, combo := range combos {
				for _, value := range m.Axes[key] {
					expanded := make(schema.Combination, len(combo)+1)
					for k, v := range combo {
						expanded[k] = v
					}
					expanded[key] = value
					next = append(next, expanded)
				}
			}
			combos = next
		}
	}

	combos = slices.DeleteFunc(combos, func(combo schema.Combination) bool {
		for _, excl := range m.Exclude {
			if subsetOf(excl, combo) {
				return true
			}
		}
		return false
	})

	for _, incl := range m.Include {
		axisPart := make(schema.Combination, len(incl))
		extraPart := make(schema.Combination, len(incl))
		for k, v := range incl {
			if _, ok := m.Axes[k]; ok {
				axisPart[k] = v
			} else {
				extraPart[k] = v
			}
		}

		matched := false
		for _, combo := range combos {
			if subsetOf(axisPart, combo) {
				matched = true
				for k, v := range extraPart {
					combo[k] = v
				}
			}
		}

		// an include that matches no combination stands on its own
		if !matched {
			standalone := make(schema.Combination, len(incl))
			for k, v := range incl {
				standalone[k] = v
			}
			combos = append(combos, standalone)
		}
	}

	return combos, nil
}

// subsetOf reports whether every key/value pair in sub is present in combo
//
// Values are compared by their string forms so that quoted and unquoted
// scalars ("3.9" vs 3.9) line up the way workflow authors expect.
func subsetOf(sub, combo schema.Combination) bool {
	if len(sub) == 0 {
		return false
	}
	for k, v := range sub {
		actual, ok := combo[k]
		if !ok || cast.ToString(actual) != cast.ToString(v) {
			return false
		}
	}
	return true
}

// CombinationName renders a combination the way hosted runners title
// matrix jobs: axis values joined in sorted key order
func CombinationName(combo schema.Combination) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, cast.ToString(combo[k]))
	}
	return strings.Join(parts, ", ")
}
