package speech

import "testing"

func TestWordIndexAt(t *testing.T) {
	text := "  Entropy always   increases over time"
	tests := []struct {
		offset int
		want   int
	}{
		{-3, 0},
		{0, 0},
		{2, 0},
		{10, 1},
		{19, 2},
		{28, 3},
		{len(text), 5},
		{len(text) + 40, 5},
	}
	for _, tt := range tests {
		if got := WordIndexAt(text, tt.offset); got != tt.want {
			t.Errorf("WordIndexAt(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestPlainText(t *testing.T) {
	md := "## Heat\n\nHeat flows [downhill](http://x).\n\n- hot\n- cold\n\n```go\nx := 1\n```\n"
	want := "Heat. Heat flows downhill. hot. cold."
	if got := PlainText(md); got != want {
		t.Errorf("PlainText = %q, want %q", got, want)
	}
}

func TestRecognitionErrorTransient(t *testing.T) {
	for _, code := range []string{ErrNoSpeech, ErrAborted, ErrNetwork} {
		if !(&RecognitionError{Code: code}).Transient() {
			t.Errorf("%s should be transient", code)
		}
	}
	if (&RecognitionError{Code: ErrNotAllowed}).Transient() {
		t.Error("not-allowed should be reported")
	}
}
