package dto

import "time"

// LessonProgressRequest addresses one learner's lesson.
type LessonProgressRequest struct {
	UserID   string `json:"user_id" query:"user_id" validate:"required,max=128"`
	Grade    string `json:"grade" query:"grade" validate:"required,max=64"`
	Subject  string `json:"subject" query:"subject" validate:"required,max=64"`
	LessonID string `json:"lesson_id" query:"lesson_id" validate:"required,max=128"`
}

// UpdateSectionRequest moves the learner to a section, optionally completing it.
type UpdateSectionRequest struct {
	LessonProgressRequest
	SectionID string `json:"section_id" validate:"required,max=128"`
	Status    string `json:"status" validate:"omitempty,oneof=in_progress completed"`
}

// RecordAnswerRequest records one answer outside the evaluation flow.
type RecordAnswerRequest struct {
	LessonProgressRequest
	QuestionID string `json:"question_id" validate:"required,max=128"`
	IsCorrect  bool   `json:"is_correct"`
	HintsUsed  int    `json:"hints_used" validate:"gte=0"`
}

// AddTimeRequest adds study minutes to a lesson.
type AddTimeRequest struct {
	LessonProgressRequest
	Minutes int `json:"minutes" validate:"required,gt=0,lte=1440"`
}

// SubjectProgressQuery addresses a learner's subject.
type SubjectProgressQuery struct {
	UserID  string `query:"user_id" validate:"required,max=128"`
	Grade   string `query:"grade" validate:"required,max=64"`
	Subject string `query:"subject" validate:"required,max=64"`
}

// QuestionProgressResponse is the per question record inside a lesson.
type QuestionProgressResponse struct {
	Correct             bool       `json:"correct"`
	Attempts            int        `json:"attempts"`
	HintsUsed           int        `json:"hints_used"`
	FirstAttemptCorrect bool       `json:"first_attempt_correct"`
	AnsweredAt          *time.Time `json:"answered_at"`
}

// LessonProgressResponse is one learner's state in one lesson.
type LessonProgressResponse struct {
	Grade             string                              `json:"grade"`
	Subject           string                              `json:"subject"`
	LessonID          string                              `json:"lesson_id"`
	Status            string                              `json:"status"`
	StartedAt         time.Time                           `json:"started_at"`
	CompletedAt       *time.Time                          `json:"completed_at"`
	CurrentSection    string                              `json:"current_section"`
	SectionsCompleted []string                            `json:"sections_completed"`
	QuestionsAnswered map[string]QuestionProgressResponse `json:"questions_answered"`
	TotalScore        float64                             `json:"total_score"`
	TotalQuestions    int                                 `json:"total_questions"`
	TimeSpentMinutes  int                                 `json:"time_spent_minutes"`
}

// ProgressStats are the aggregate counters of a learner.
type ProgressStats struct {
	TotalLessonsStarted    int `json:"total_lessons_started"`
	TotalLessonsCompleted  int `json:"total_lessons_completed"`
	TotalSectionsCompleted int `json:"total_sections_completed"`
	TotalQuestionsAnswered int `json:"total_questions_answered"`
	TotalQuestionsCorrect  int `json:"total_questions_correct"`
	TotalTimeMinutes       int `json:"total_time_minutes"`
}

// UserProgressResponse is the full progress document of a learner.
type UserProgressResponse struct {
	UserID     string                            `json:"user_id"`
	CreatedAt  time.Time                         `json:"created_at"`
	LastActive time.Time                         `json:"last_active"`
	Lessons    map[string]LessonProgressResponse `json:"lessons"`
	Stats      ProgressStats                     `json:"stats"`
}

// SubjectProgressResponse lists a learner's lessons in one subject.
type SubjectProgressResponse struct {
	Grade            string                            `json:"grade"`
	Subject          string                            `json:"subject"`
	Lessons          map[string]LessonProgressResponse `json:"lessons"`
	TotalLessons     int                               `json:"total_lessons"`
	CompletedLessons int                               `json:"completed_lessons"`
}

// DashboardStats is the summary shown on a learner dashboard.
type DashboardStats struct {
	UserID            string    `json:"user_id"`
	CreatedAt         time.Time `json:"created_at"`
	LastActive        time.Time `json:"last_active"`
	LessonsStarted    int       `json:"lessons_started"`
	LessonsCompleted  int       `json:"lessons_completed"`
	CompletionRate    float64   `json:"completion_rate"`
	SectionsCompleted int       `json:"sections_completed"`
	QuestionsAnswered int       `json:"questions_answered"`
	QuestionsCorrect  int       `json:"questions_correct"`
	Accuracy          float64   `json:"accuracy"`
	TimeSpentMinutes  int       `json:"time_spent_minutes"`
}

// PrerequisiteCheckResponse tells whether a lesson can be started.
type PrerequisiteCheckResponse struct {
	LessonID      string   `json:"lesson_id"`
	Prerequisites []string `json:"prerequisites"`
	Missing       []string `json:"missing"`
	CanStart      bool     `json:"can_start"`
}
