package app

import "testing"

func TestQualifyModelName(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		want     string
	}{
		{"gemini", "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"openai", "gpt-4o", "openai/gpt-4o"},
		{"ollama", "llama3.3", "ollama/llama3.3"},
		{"gemini", "googleai/gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{"gemini", "", ""},
	}

	for _, tt := range tests {
		if got := qualifyModelName(tt.provider, tt.model); got != tt.want {
			t.Errorf("qualifyModelName(%q, %q) = %q, want %q",
				tt.provider, tt.model, got, tt.want)
		}
	}
}
