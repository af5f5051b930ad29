package sanitizer

import (
	"reflect"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "trims and collapses spaces",
			input: "  my   story   here  ",
			want:  "my story here",
		},
		{
			name:  "collapses blank lines",
			input: "line one\n\n\n\nline two",
			want:  "line one\n\nline two",
		},
		{
			name:  "empty stays empty",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeSlice(t *testing.T) {
	input := []string{" first question ", "", "second", " first question ", "third"}
	got := SanitizeSlice(input, SanitizeText)
	want := []string{"first question", "second", "third"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("SanitizeSlice() = %v, want %v", got, want)
	}
}
