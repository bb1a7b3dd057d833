package attendance

import (
	"encoding/json"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42", "42"},
		{" 42 ", "42"},
		{"042", "42"},
		{"42.0", "42"},
		{"４２", "42"},
		{"+42", "42"},
		{"E042", "e042"},
		{"ÉTU-7", "étu-7"},
		{"42.5", "42.5"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Fold(tt.input); got != tt.expected {
				t.Errorf("Fold(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	roster, err := NewRoster([]Student{
		{ID: "42", Name: "Ana"},
		{ID: "E007", Name: "Ben"},
		{ID: "0013", Name: "Cleo"},
	})
	if err != nil {
		t.Fatalf("NewRoster: %v", err)
	}

	tests := []struct {
		name     string
		raw      RawID
		want     CanonicalID
		inRoster bool
	}{
		{"exact string", NewRawID("42"), "42", true},
		{"number against string id", NewNumericRawID(42), "42", true},
		{"padded with spaces", NewRawID(" 42"), "42", true},
		{"case differs", NewRawID("e007"), "E007", true},
		{"leading zeros on roster side", NewNumericRawID(13), "0013", true},
		{"full-width digits", NewRawID("４２"), "42", true},
		{"unknown", NewRawID("99"), "99", false},
		{"empty", NewRawID(""), "", false},
	}

	var n Normalizer
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.Normalize(tt.raw, roster)
			if got != tt.want || ok != tt.inRoster {
				t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.raw.String(), got, ok, tt.want, tt.inRoster)
			}
		})
	}
}

func TestNormalizer_StableAcrossRepresentations(t *testing.T) {
	roster, _ := NewRoster([]Student{{ID: "42", Name: "Ana"}, {ID: "7", Name: "Ben"}})

	pairs := [][2]string{
		{`"42"`, `42`},
		{`42.0`, `"42"`},
		{`"007"`, `7`},
	}

	var n Normalizer
	for _, p := range pairs {
		var x, y RawID
		if err := json.Unmarshal([]byte(p[0]), &x); err != nil {
			t.Fatalf("unmarshal %s: %v", p[0], err)
		}
		if err := json.Unmarshal([]byte(p[1]), &y); err != nil {
			t.Fatalf("unmarshal %s: %v", p[1], err)
		}
		idX, okX := n.Normalize(x, roster)
		idY, okY := n.Normalize(y, roster)
		if idX != idY || !okX || !okY {
			t.Errorf("Normalize(%s) = %q/%v, Normalize(%s) = %q/%v", p[0], idX, okX, p[1], idY, okY)
		}
	}
}

func TestNormalizer_NilRoster(t *testing.T) {
	var n Normalizer
	got, ok := n.Normalize(NewRawID("S1"), nil)
	if got != "S1" || ok {
		t.Errorf("Normalize with nil roster = %q, %v", got, ok)
	}
}
