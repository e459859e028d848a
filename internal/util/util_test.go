package util

import "testing"

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFixEscapeQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no escaped quotes", "hello", "hello"},
		{"single escaped quote", `he""llo`, `he"llo`},
		{"multiple escaped quotes", `a""b""c`, `a"b"c`},
		{"consecutive escaped", `a""""b`, `a""b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FixEscapeQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("FixEscapeQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCleanArgs(t *testing.T) {
	args := []string{`"Old Mill"`, `2`, `"say ""hi"""`, `""`}
	got := CleanArgs(args)

	want := []string{"Old Mill", "2", `say "hi`, ""}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CleanArgs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty line", "", nil},
		{"blanks only", "  \t ", nil},
		{"plain fields", ":CONQUER: p1 2", []string{":CONQUER:", "p1", "2"}},
		{"repeated blanks", "  :SCORE:BONUS:\t2   p1 ", []string{":SCORE:BONUS:", "2", "p1"}},
		{"quoted field with space", `:CONQUER: "Old Mill" 2`, []string{":CONQUER:", `"Old Mill"`, "2"}},
		{"escaped quote inside", `:X: "a""b c"`, []string{":X:", `"a""b c"`}},
		{"empty quoted field", `:PERK:ACTIVATE: 1 BOOST ""`, []string{":PERK:ACTIVATE:", "1", "BOOST", `""`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SplitFields(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("SplitFields(%q) = %q, want %q", tt.input, result, tt.expected)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("SplitFields(%q)[%d] = %q, want %q", tt.input, i, result[i], tt.expected[i])
				}
			}
		})
	}
}
