package models

// Catalog mirrors metadata.json: grades, their subjects and lesson entries.
type Catalog struct {
	Grades map[string]CatalogGrade `json:"grades"`
}

// CatalogGrade groups subjects for one grade.
type CatalogGrade struct {
	Name     string                    `json:"name"`
	Subjects map[string]CatalogSubject `json:"subjects"`
}

// CatalogSubject lists the lessons of a subject.
type CatalogSubject struct {
	Name    string        `json:"name"`
	Lessons []LessonEntry `json:"lessons"`
}

// LessonEntry is the catalog summary of a lesson file.
type LessonEntry struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	File                 string `json:"file"`
	Difficulty           string `json:"difficulty,omitempty"`
	EstimatedTimeMinutes int    `json:"estimated_time_minutes,omitempty"`
}

// Lesson is the full content of a lesson file.
type Lesson struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Difficulty           string    `json:"difficulty"`
	EstimatedTimeMinutes int       `json:"estimated_time_minutes"`
	Prerequisites        []string  `json:"prerequisites"`
	Sections             []Section `json:"sections"`
	Summary              string    `json:"summary,omitempty"`
	NextLessons          []string  `json:"next_lessons"`
}

// Section is a titled block of lesson content with optional questions.
type Section struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Type      string         `json:"type,omitempty"`
	Content   string         `json:"content"`
	Questions []QuestionItem `json:"questions,omitempty"`
}

// QuestionItem is a question as authored in lesson content.
type QuestionItem struct {
	ID                 string   `json:"id"`
	Question           string   `json:"question"`
	Answer             string   `json:"answer"`
	EvaluationCriteria []string `json:"evaluation_criteria,omitempty"`
	Hints              []string `json:"hints,omitempty"`
	Context            string   `json:"context,omitempty"`
	Type               string   `json:"type,omitempty"`
}

// FindSection returns the section with id.
func (l *Lesson) FindSection(id string) (*Section, bool) {
	for i := range l.Sections {
		if l.Sections[i].ID == id {
			return &l.Sections[i], true
		}
	}
	return nil, false
}

// FindQuestion returns the question with id.
func (s *Section) FindQuestion(id string) (*QuestionItem, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}
