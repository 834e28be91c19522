package dto

// QuestionRef addresses one question of a lesson section.
type QuestionRef struct {
	Grade      string `json:"grade" validate:"required,max=64"`
	Subject    string `json:"subject" validate:"required,max=64"`
	LessonID   string `json:"lesson_id" validate:"required,max=128"`
	SectionID  string `json:"section_id" validate:"required,max=128"`
	QuestionID string `json:"question_id" validate:"required,max=128"`
}

// EvaluateAnswerRequest is one student submission.
type EvaluateAnswerRequest struct {
	QuestionRef
	UserID    string `json:"user_id" validate:"omitempty,max=128"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	Answer    string `json:"answer" validate:"required,max=2000"`
}

// EvaluateAnswerResponse is the public evaluation payload.
type EvaluateAnswerResponse struct {
	IsCorrect         bool    `json:"is_correct"`
	Confidence        float64 `json:"confidence"`
	Feedback          string  `json:"feedback"`
	HintLevel         *int    `json:"hint_level"`
	CloseQuiz         bool    `json:"close_quiz"`
	Method            string  `json:"method"`
	AttemptsMade      int     `json:"attempts_made"`
	AttemptsRemaining int     `json:"attempts_remaining"`
	Resolved          bool    `json:"resolved"`
}

// HintRequest asks for a predefined hint by index.
type HintRequest struct {
	QuestionRef
	HintLevel int `json:"hint_level" validate:"gte=0"`
}

// HintResponse carries one predefined hint.
type HintResponse struct {
	Hint       string `json:"hint"`
	HintLevel  int    `json:"hint_level"`
	TotalHints int    `json:"total_hints"`
	HasMore    bool   `json:"has_more"`
}

// ResetAttemptsRequest restarts a section quiz for a session.
type ResetAttemptsRequest struct {
	UserID    string `json:"user_id" validate:"omitempty,max=128"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
	Grade     string `json:"grade" validate:"required,max=64"`
	Subject   string `json:"subject" validate:"required,max=64"`
	LessonID  string `json:"lesson_id" validate:"required,max=128"`
	SectionID string `json:"section_id" validate:"required,max=128"`
}

// ResetAttemptsResponse reports how many attempt states were cleared.
type ResetAttemptsResponse struct {
	Cleared int `json:"cleared"`
}

// EvaluationEvent is published after every evaluated answer.
type EvaluationEvent struct {
	ID            string  `json:"id"`
	CorrelationID string  `json:"correlation_id,omitempty"`
	UserID        string  `json:"user_id"`
	SessionID     string  `json:"session_id"`
	Grade         string  `json:"grade"`
	Subject       string  `json:"subject"`
	LessonID      string  `json:"lesson_id"`
	SectionID     string  `json:"section_id"`
	QuestionID    string  `json:"question_id"`
	IsCorrect     bool    `json:"is_correct"`
	Confidence    float64 `json:"confidence"`
	Method        string  `json:"method"`
	CloseQuiz     bool    `json:"close_quiz"`
	AttemptsMade  int     `json:"attempts_made"`
	HintsUsed     int     `json:"hints_used"`
	Resolved      bool    `json:"resolved"`
	OccurredAt    string  `json:"occurred_at"`
}
