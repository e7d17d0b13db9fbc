package models

import "testing"

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64   { return &i }

func TestNormalizeCorrectKey(t *testing.T) {
	tests := []struct {
		name    string
		letter  *string
		index   *int64
		want    string
		wantErr bool
	}{
		{"letter passes through", strPtr("C"), nil, "C", false},
		{"index zero maps to A", nil, intPtr(0), "A", false},
		{"index four maps to E", nil, intPtr(4), "E", false},
		{"letter wins when both set", strPtr("B"), intPtr(3), "B", false},
		{"empty letter falls back to index", strPtr(""), intPtr(1), "B", false},
		{"invalid letter", strPtr("F"), nil, "", true},
		{"lowercase letter", strPtr("a"), nil, "", true},
		{"index out of range", nil, intPtr(5), "", true},
		{"negative index", nil, intPtr(-1), "", true},
		{"neither present", nil, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCorrectKey(tt.letter, tt.index)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeCorrectKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeCorrectKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToServeQuestionStripsAnswerData(t *testing.T) {
	q := Question{
		ID:         1,
		Stem:       "stem",
		CorrectKey: "B",
		Options: []Option{
			{Key: "A", Text: "first", Rationale: "wrong because"},
			{Key: "B", Text: "second", Rationale: "right because"},
		},
	}

	served := q.ToServeQuestion()
	if len(served.Options) != 2 {
		t.Fatalf("served %d options, want 2", len(served.Options))
	}
	for i, opt := range served.Options {
		if opt.Key != q.Options[i].Key || opt.Text != q.Options[i].Text {
			t.Errorf("option %d = %+v, want key/text preserved", i, opt)
		}
	}
}
