package questions

import "testing"

func TestParseAnswerType(t *testing.T) {
	cases := []struct {
		raw  string
		want AnswerType
	}{
		{"text", AnswerText},
		{"number", AnswerNumber},
		{"range", AnswerRange},
		{"boolean", AnswerBoolean},
		{"location", AnswerLocation},
		{"image", AnswerImage},
		{" Number ", AnswerNumber},
		{"BOOLEAN", AnswerBoolean},
		{"", AnswerUnknown},
		{"emoji", AnswerUnknown},
	}
	for _, tc := range cases {
		if got := ParseAnswerType(tc.raw); got != tc.want {
			t.Errorf("ParseAnswerType(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestOptionByLabel(t *testing.T) {
	q := Question{
		Key: "age",
		Options: []QuestionOption{
			{ID: 1, Label: "0-10", OwnerQuestionKey: "age"},
			{ID: 2, Label: "11-20", OwnerQuestionKey: "age"},
		},
	}

	opt, ok := q.OptionByLabel("11-20")
	if !ok || opt.ID != 2 {
		t.Fatalf("expected option 2, got %+v ok=%v", opt, ok)
	}

	// Match is exact and case-sensitive.
	if _, ok := q.OptionByLabel("11-20 "); ok {
		t.Error("trailing space should not match")
	}
	if _, ok := q.OptionByLabel("0-10x"); ok {
		t.Error("unexpected match")
	}
}

func TestOptionLabelsOrder(t *testing.T) {
	q := Question{
		Options: []QuestionOption{
			{ID: 3, Label: "c"},
			{ID: 1, Label: "a"},
			{ID: 2, Label: "b"},
		},
	}
	labels := q.OptionLabels()
	if len(labels) != 3 || labels[0] != "c" || labels[1] != "a" || labels[2] != "b" {
		t.Fatalf("labels should preserve catalog order, got %v", labels)
	}
}
