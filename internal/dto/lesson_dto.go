package dto

// GradeResponse summarises one grade of the catalog.
type GradeResponse struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Subjects []string `json:"subjects"`
}

// SubjectResponse summarises one subject of a grade.
type SubjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	LessonCount int    `json:"lesson_count"`
}

// LessonSummary is the short form of a lesson used in lists and recommendations.
type LessonSummary struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Difficulty           string `json:"difficulty,omitempty"`
	EstimatedTimeMinutes int    `json:"estimated_time_minutes,omitempty"`
}

// LessonSearchResult locates a lesson in the catalog.
type LessonSearchResult struct {
	Grade       string `json:"grade"`
	GradeName   string `json:"grade_name"`
	Subject     string `json:"subject"`
	SubjectName string `json:"subject_name"`
	LessonID    string `json:"lesson_id"`
	Title       string `json:"title"`
	Difficulty  string `json:"difficulty,omitempty"`
}

// SectionResponse is a section as shown to a learner; answers stay on the server.
type SectionResponse struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Type      string             `json:"type,omitempty"`
	Content   string             `json:"content"`
	Questions []QuestionResponse `json:"questions,omitempty"`
}

// QuestionResponse omits the expected answer and acceptable variants.
type QuestionResponse struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Type      string `json:"type,omitempty"`
	HintCount int    `json:"hint_count"`
}

// LessonResponse is a full lesson without answers.
type LessonResponse struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title"`
	Difficulty           string            `json:"difficulty"`
	EstimatedTimeMinutes int               `json:"estimated_time_minutes"`
	Prerequisites        []string          `json:"prerequisites"`
	Sections             []SectionResponse `json:"sections"`
	Summary              string            `json:"summary,omitempty"`
	NextLessons          []string          `json:"next_lessons"`
}

// LessonImportResponse reports where an imported lesson was registered.
type LessonImportResponse struct {
	Grade   string        `json:"grade"`
	Subject string        `json:"subject"`
	Lesson  LessonSummary `json:"lesson"`
	File    string        `json:"file"`
}
