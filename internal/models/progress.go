package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lesson progress statuses.
const (
	LessonStatusInProgress = "in_progress"
	LessonStatusCompleted  = "completed"
)

// UserProgress holds the aggregate counters for one learner.
type UserProgress struct {
	UserID                 string    `gorm:"primaryKey;size:128" json:"user_id"`
	TotalLessonsStarted    int       `json:"total_lessons_started"`
	TotalLessonsCompleted  int       `json:"total_lessons_completed"`
	TotalSectionsCompleted int       `json:"total_sections_completed"`
	TotalQuestionsAnswered int       `json:"total_questions_answered"`
	TotalQuestionsCorrect  int       `json:"total_questions_correct"`
	TotalTimeMinutes       int       `json:"total_time_minutes"`
	CreatedAt              time.Time `json:"created_at"`
	LastActive             time.Time `json:"last_active"`
}

// LessonProgress tracks one learner through one lesson.
type LessonProgress struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	UserID            string             `gorm:"size:128;not null;uniqueIndex:idx_lesson_progress_key" json:"user_id"`
	Grade             string             `gorm:"size:64;not null;uniqueIndex:idx_lesson_progress_key" json:"grade"`
	Subject           string             `gorm:"size:64;not null;uniqueIndex:idx_lesson_progress_key" json:"subject"`
	LessonID          string             `gorm:"size:128;not null;uniqueIndex:idx_lesson_progress_key" json:"lesson_id"`
	Status            string             `gorm:"size:32;not null;default:in_progress" json:"status"`
	CurrentSection    string             `gorm:"size:128" json:"current_section"`
	SectionsRaw       datatypes.JSON     `gorm:"column:sections_completed" json:"-"`
	TotalScore        float64            `json:"total_score"`
	TotalQuestions    int                `json:"total_questions"`
	TimeSpentMinutes  int                `json:"time_spent_minutes"`
	StartedAt         time.Time          `json:"started_at"`
	CompletedAt       *time.Time         `json:"completed_at"`
	Questions         []QuestionProgress `gorm:"constraint:OnDelete:CASCADE" json:"questions_answered"`
	SectionsCompleted []string           `gorm:"-" json:"sections_completed"`
}

// BeforeSave serialises the completed section list.
func (l *LessonProgress) BeforeSave(tx *gorm.DB) error {
	if l.SectionsCompleted == nil {
		l.SectionsCompleted = []string{}
	}
	raw, err := json.Marshal(l.SectionsCompleted)
	if err != nil {
		return err
	}
	l.SectionsRaw = datatypes.JSON(raw)
	if l.Status == "" {
		l.Status = LessonStatusInProgress
	}
	return nil
}

// AfterFind hydrates the completed section list.
func (l *LessonProgress) AfterFind(tx *gorm.DB) error {
	l.SectionsCompleted = []string{}
	if len(l.SectionsRaw) == 0 {
		return nil
	}
	return json.Unmarshal(l.SectionsRaw, &l.SectionsCompleted)
}

// HasSection reports whether sectionID was completed.
func (l *LessonProgress) HasSection(sectionID string) bool {
	for _, s := range l.SectionsCompleted {
		if s == sectionID {
			return true
		}
	}
	return false
}

// QuestionProgress records answers to one question within a lesson.
type QuestionProgress struct {
	ID                  uint       `gorm:"primaryKey" json:"-"`
	LessonProgressID    uint       `gorm:"not null;uniqueIndex:idx_question_progress_key" json:"-"`
	QuestionID          string     `gorm:"size:128;not null;uniqueIndex:idx_question_progress_key" json:"question_id"`
	Attempts            int        `json:"attempts"`
	HintsUsed           int        `json:"hints_used"`
	Correct             bool       `json:"correct"`
	FirstAttemptCorrect bool       `json:"first_attempt_correct"`
	AnsweredAt          *time.Time `json:"answered_at"`
}

// EvaluationLog is an audit row for every evaluated answer.
type EvaluationLog struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       string            `gorm:"size:128;index" json:"user_id"`
	SessionID    string            `gorm:"size:128;index" json:"session_id"`
	Grade        string            `gorm:"size:64" json:"grade"`
	Subject      string            `gorm:"size:64" json:"subject"`
	LessonID     string            `gorm:"size:128" json:"lesson_id"`
	SectionID    string            `gorm:"size:128" json:"section_id"`
	QuestionID   string            `gorm:"size:128;index" json:"question_id"`
	Method       string            `gorm:"size:32" json:"method"`
	IsCorrect    bool              `json:"is_correct"`
	Confidence   float64           `json:"confidence"`
	CloseQuiz    bool              `json:"close_quiz"`
	HintLevel    *int              `json:"hint_level"`
	AttemptsMade int               `json:"attempts_made"`
	Degraded     bool              `json:"degraded"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AllModels lists every persisted model for migrations.
func AllModels() []interface{} {
	return []interface{}{&UserProgress{}, &LessonProgress{}, &QuestionProgress{}, &EvaluationLog{}}
}
