package core

import (
	"reflect"
	"strings"
	"testing"
)

// ============================================================================
// NormalizeHeaders Tests
// ============================================================================

func TestNormalizeHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "already canonical",
			input: []string{"id", "name", "amount"},
			want:  []string{"id", "name", "amount"},
		},
		{
			name:  "case and whitespace",
			input: []string{"  Region ", "UNITS", "Sale Date"},
			want:  []string{"region", "units", "sale_date"},
		},
		{
			name:  "punctuation runs collapse",
			input: []string{"Unit Price ($)", "a--b__c", "first.last name"},
			want:  []string{"unit_price", "a_b_c", "first_last_name"},
		},
		{
			name:  "leading and trailing separators dropped",
			input: []string{"_id_", "(total)", "#count"},
			want:  []string{"id", "total", "count"},
		},
		{
			name:  "diacritics folded",
			input: []string{"Café", "Año", "Ölpreis"},
			want:  []string{"cafe", "ano", "olpreis"},
		},
		{
			name:  "empty headers get positional names",
			input: []string{"", "name", "   ", "$$$"},
			want:  []string{"column_1", "name", "column_3", "column_4"},
		},
		{
			name:  "duplicates get suffixes",
			input: []string{"Name", "name", "NAME "},
			want:  []string{"name", "name_2", "name_3"},
		},
		{
			name:  "suffix skips names already taken",
			input: []string{"a", "a_2", "a"},
			want:  []string{"a", "a_2", "a_3"},
		},
		{
			name:  "literal suffix after generated one",
			input: []string{"a", "a", "a_2"},
			want:  []string{"a", "a_2", "a_2_2"},
		},
		{
			name:  "positional name collision",
			input: []string{"column_2", ""},
			want:  []string{"column_2", "column_2_2"},
		},
		{
			name:  "digits kept",
			input: []string{"Q1 2024", "2nd"},
			want:  []string{"q1_2024", "2nd"},
		},
		{
			name:  "non latin letters kept",
			input: []string{"日付", "price 价格", "Имя", "Город"},
			want:  []string{"日付", "price_价格", "имя", "город"},
		},
		{
			name:  "letters without decomposition kept",
			input: []string{"Café Größe", "Straße"},
			want:  []string{"cafe_große", "straße"},
		},
		{
			name:  "empty input",
			input: []string{},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeHeaders(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeHeaders(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeHeaders_Properties(t *testing.T) {
	inputs := [][]string{
		{"a", "A", "a ", " a", "a_2", "a", ""},
		{"", "", "", ""},
		{"x y", "x_y", "x-y", "X Y"},
		{"Total ($)", "total", "TOTAL", "total_2", "total_3"},
		{"Имя", "ИМЯ", "Größe", "größe"},
	}

	for _, in := range inputs {
		got := NormalizeHeaders(in)

		if len(got) != len(in) {
			t.Fatalf("NormalizeHeaders(%q) returned %d names, want %d", in, len(got), len(in))
		}

		seen := make(map[string]bool)
		for _, name := range got {
			if seen[name] {
				t.Errorf("NormalizeHeaders(%q) produced duplicate %q in %q", in, name, got)
			}
			seen[name] = true

			if name == "" || strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_") {
				t.Errorf("NormalizeHeaders(%q) produced malformed name %q", in, name)
			}
			for _, r := range name {
				if !isIdentRune(r) && r != '_' {
					t.Errorf("NormalizeHeaders(%q) produced %q with invalid rune %q", in, name, r)
				}
			}
		}

		// Canonical names are a fixed point.
		if again := NormalizeHeaders(got); !reflect.DeepEqual(again, got) {
			t.Errorf("NormalizeHeaders is not idempotent: %q -> %q", got, again)
		}
	}
}

func TestFoldDiacritics(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"café", "cafe"},
		{"naïve", "naive"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := foldDiacritics(tt.input); got != tt.want {
			t.Errorf("foldDiacritics(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
