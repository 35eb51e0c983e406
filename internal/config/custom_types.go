// Package config handles application configuration.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fraction is a ratio in (0, 1] that can be unmarshalled from a number
// or from a percentage string such as "20%".
type Fraction float64

// Float64 returns the fraction as a plain float.
func (f Fraction) Float64() float64 { return float64(f) }

// UnmarshalYAML implements the yaml.Unmarshaler interface for Fraction.
func (f *Fraction) UnmarshalYAML(value *yaml.Node) error {
	var v float64
	switch value.Tag {
	case "!!int", "!!float":
		parsed, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fmt.Errorf("cannot unmarshal %q into Fraction: %w", value.Value, err)
		}
		v = parsed
	case "!!str":
		s := strings.TrimSpace(value.Value)
		if pct, ok := strings.CutSuffix(s, "%"); ok {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
			if err != nil {
				return fmt.Errorf("cannot unmarshal percentage %q into Fraction", value.Value)
			}
			v = parsed / 100
		} else {
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("cannot unmarshal string %q into Fraction", value.Value)
			}
			v = parsed
		}
	default:
		return fmt.Errorf("cannot unmarshal %s into Fraction", value.Tag)
	}

	if v <= 0 || v > 1 {
		return fmt.Errorf("fraction %q out of range (0, 1]", value.Value)
	}
	*f = Fraction(v)
	return nil
}
