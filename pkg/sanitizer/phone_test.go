package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "e164 passthrough",
			input: "+79161234567",
			want:  "+79161234567",
		},
		{
			name:  "national russian number",
			input: "8 916 123-45-67",
			want:  "+79161234567",
		},
		{
			name:  "number with spaces and dashes",
			input: "+7 916 123-45-67",
			want:  "+79161234567",
		},
		{
			name:  "israeli mobile",
			input: "+972541234567",
			want:  "+972541234567",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  "",
		},
		{
			name:  "letters rejected",
			input: "call me maybe",
			want:  "",
		},
		{
			name:  "too short",
			input: "+7916",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePhone(tt.input)
			if got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
