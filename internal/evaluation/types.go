// Package evaluation decides whether a free-text answer is correct and which
// feedback to show, escalating from lexical matching through a spelling check
// to a model-backed relatedness verdict.
package evaluation

// Method identifies the strategy that produced a Result.
type Method string

const (
	MethodLexical     Method = "lexical"
	MethodSpelling    Method = "spelling"
	MethodAIRelated   Method = "ai-related"
	MethodAIUnrelated Method = "ai-unrelated"
)

// DefaultMaxAttempts is used when an AttemptState carries no budget.
const DefaultMaxAttempts = 3

// Question is the immutable record an answer is checked against.
type Question struct {
	ID                 string   `json:"id"`
	Prompt             string   `json:"prompt"`
	ExpectedAnswer     string   `json:"expected_answer"`
	AcceptableVariants []string `json:"acceptable_variants,omitempty"`
	Hints              []string `json:"hints,omitempty"`
	Topic              string   `json:"topic,omitempty"`
}

// AttemptState tracks one student on one question within one quiz session.
// Evaluate never mutates the value it receives; it returns an updated copy.
type AttemptState struct {
	AttemptsMade int   `json:"attempts_made"`
	MaxAttempts  int   `json:"max_attempts"`
	HintsShown   []int `json:"hints_shown"`
	Resolved     bool  `json:"resolved"`
}

// NewAttemptState returns a fresh state with the given budget.
func NewAttemptState(maxAttempts int) AttemptState {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return AttemptState{MaxAttempts: maxAttempts, HintsShown: []int{}}
}

// Remaining reports how many submissions are left before the answer is revealed.
func (s AttemptState) Remaining() int {
	if s.Resolved {
		return 0
	}
	left := s.budget() - s.AttemptsMade
	if left < 0 {
		return 0
	}
	return left
}

func (s AttemptState) budget() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

func (s AttemptState) clone() AttemptState {
	out := s
	out.MaxAttempts = s.budget()
	out.HintsShown = make([]int, len(s.HintsShown))
	copy(out.HintsShown, s.HintsShown)
	return out
}

// Result is the outcome of one evaluation.
type Result struct {
	IsCorrect  bool    `json:"is_correct"`
	Confidence float64 `json:"confidence"`
	Feedback   string  `json:"feedback"`
	HintLevel  *int    `json:"hint_level"`
	CloseQuiz  bool    `json:"close_quiz"`
	Method     Method  `json:"method"`
	// Degraded is set when the model was unavailable and a predefined hint was used.
	Degraded bool `json:"degraded,omitempty"`
}
