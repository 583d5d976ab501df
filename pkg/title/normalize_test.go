package title

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase and punctuation", "Blade Runner: 2049", "blade runner 2049"},
		{"strips leading article", "The Matrix", "matrix"},
		{"accents removed", "Léon", "leon"},
		{"ampersand", "Fast & Furious", "fast and furious"},
		{"collapses whitespace", "  Dune   Part  Two ", "dune part two"},
		{"cyrillic preserved", "Брат 2", "брат 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTransliterate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Брат", "Brat"},
		{"Ночной дозор", "Nochnoy dozor"},
		{"Щит и меч", "Schit i mech"},
		{"Blade Runner", "Blade Runner"},
	}

	for _, tt := range tests {
		if got := Transliterate(tt.input); got != tt.want {
			t.Errorf("Transliterate(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestContainsCyrillic(t *testing.T) {
	if !ContainsCyrillic("Вий 2160p") {
		t.Error("expected Cyrillic detection in mixed string")
	}
	if ContainsCyrillic("Blade Runner 2049") {
		t.Error("did not expect Cyrillic in Latin string")
	}
}

func TestWordOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"full overlap", "Blade Runner", "Blade Runner 2049 1080p", 1.0},
		{"half overlap", "Blade Runner", "Blade Trinity", 0.5},
		{"no overlap", "Alien", "Predator", 0},
		{"empty query", "", "anything", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WordOverlap(tt.a, tt.b); got != tt.want {
				t.Errorf("WordOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
