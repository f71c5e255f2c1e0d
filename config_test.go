// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

package dispatch

import "testing"

func TestStaticConfig(t *testing.T) {
	c := StaticConfig{
		"str":     "value",
		"num":     42,
		"numstr":  " 7 ",
		"float":   float64(3),
		"bool":    true,
		"boolstr": "false",
		"garbage": "yes please",
		"map":     map[string]any{"X-A": "a", "X-B": 1},
	}
	t.Run("String", func(t *testing.T) {
		if got := c.String("str", "def"); got != "value" {
			t.Errorf("Expected: %s, got: %s", "value", got)
		}
		if got := c.String("num", "def"); got != "42" {
			t.Errorf("Expected: %s, got: %s", "42", got)
		}
		if got := c.String("missing", "def"); got != "def" {
			t.Errorf("Expected: %s, got: %s", "def", got)
		}
	})
	t.Run("Int", func(t *testing.T) {
		tests := []struct {
			key  string
			want int
		}{
			{"num", 42}, {"numstr", 7}, {"float", 3}, {"garbage", -1}, {"missing", -1},
		}
		for _, tt := range tests {
			if got := c.Int(tt.key, -1); got != tt.want {
				t.Errorf("Int(%s) failed. Expected: %d, got: %d", tt.key, tt.want, got)
			}
		}
	})
	t.Run("Bool", func(t *testing.T) {
		if !c.Bool("bool", false) {
			t.Errorf("Expected bool to be true")
		}
		if c.Bool("boolstr", true) {
			t.Errorf("Expected boolstr to be false")
		}
		if !c.Bool("garbage", true) {
			t.Errorf("Expected default for unparsable value")
		}
	})
	t.Run("StringMap", func(t *testing.T) {
		m := c.StringMap("map")
		if m["X-A"] != "a" || m["X-B"] != "1" {
			t.Errorf("unexpected map: %v", m)
		}
		if c.StringMap("str") != nil {
			t.Errorf("non-map value expected to yield nil")
		}
	})
}
