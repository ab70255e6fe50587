// Package questions defines the question catalog model and its SQL-backed resolver.
package questions

import "strings"

// AnswerType is the closed set of expected reply kinds. It drives both
// validation of inbound answers and presentation of the question prompt.
type AnswerType string

const (
	AnswerText     AnswerType = "text"
	AnswerNumber   AnswerType = "number"
	AnswerRange    AnswerType = "range"
	AnswerBoolean  AnswerType = "boolean"
	AnswerLocation AnswerType = "location"
	AnswerImage    AnswerType = "image"
	// AnswerUnknown marks a catalog value outside the closed set.
	AnswerUnknown AnswerType = ""
)

// ParseAnswerType maps a raw catalog value onto the closed enum.
// Unrecognized values collapse to AnswerUnknown.
func ParseAnswerType(raw string) AnswerType {
	switch AnswerType(strings.ToLower(strings.TrimSpace(raw))) {
	case AnswerText:
		return AnswerText
	case AnswerNumber:
		return AnswerNumber
	case AnswerRange:
		return AnswerRange
	case AnswerBoolean:
		return AnswerBoolean
	case AnswerLocation:
		return AnswerLocation
	case AnswerImage:
		return AnswerImage
	default:
		return AnswerUnknown
	}
}

// Category groups questions for the visualization frontend.
type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Priority    int    `db:"priority" json:"priority"`
	Description string `db:"description" json:"description"`
}

// QuestionOption is a selectable answer choice. OwnerQuestionKey points back
// at the question the option belongs to.
type QuestionOption struct {
	ID               int64  `db:"id" json:"id"`
	Label            string `db:"name" json:"name"`
	OwnerQuestionKey string `db:"question_key" json:"question_key"`
}

// Question is a catalog entry, immutable once loaded into a queue.
type Question struct {
	ID          int64   `db:"id" json:"id"`
	Key         string  `db:"key" json:"key"`
	Prompt      string  `db:"question" json:"question"`
	RawType     string  `db:"answer_type" json:"answer_type"`
	MinValue    *int    `db:"min_value" json:"min_value"`
	MaxValue    *int    `db:"max_value" json:"max_value"`
	Category    *int64  `db:"category" json:"category"`
	IsVisible   bool    `db:"show" json:"show"`
	IsPositive  bool    `db:"is_positive" json:"is_positive"`
	DisplayName string  `db:"display_name" json:"display_name"`
	Cadence     string  `db:"cadence" json:"cadence"`
	Command     *string `db:"command" json:"command"`
	GraphType   string  `db:"graph_type" json:"graph_type"`

	// Provenance of follow-up questions. Not used operationally by the engine.
	ParentKey      *string `db:"parent_key" json:"parent_key"`
	ParentOptionID *int64  `db:"parent_option_id" json:"parent_option_id"`

	Options []QuestionOption `db:"-" json:"question_options,omitempty"`
}

// AnswerType returns the parsed enum for the question's raw catalog value.
func (q Question) AnswerType() AnswerType {
	return ParseAnswerType(q.RawType)
}

// OptionByLabel finds an option by exact label match.
func (q Question) OptionByLabel(label string) (QuestionOption, bool) {
	for _, opt := range q.Options {
		if opt.Label == label {
			return opt, true
		}
	}
	return QuestionOption{}, false
}

// OptionLabels returns option labels in catalog order.
func (q Question) OptionLabels() []string {
	if len(q.Options) == 0 {
		return nil
	}
	labels := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		labels = append(labels, opt.Label)
	}
	return labels
}
