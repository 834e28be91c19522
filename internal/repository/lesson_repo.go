package repository

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ligth279/xilov5-overhual/internal/models"
)

//go:embed lesson.schema.json
var lessonSchemaSource string

// Lesson store errors.
var (
	ErrLessonNotFound = errors.New("lesson not found")
	ErrInvalidLesson  = errors.New("invalid lesson content")
)

// LessonIssue describes a lesson file that failed to load.
type LessonIssue struct {
	Grade    string `json:"grade"`
	Subject  string `json:"subject"`
	LessonID string `json:"lesson_id"`
	File     string `json:"file"`
	Err      error  `json:"-"`
}

func (i LessonIssue) Error() string {
	return fmt.Sprintf("%s/%s/%s (%s): %v", i.Grade, i.Subject, i.LessonID, i.File, i.Err)
}

// LessonRepository reads lesson content. Content is read-only at runtime
// except for explicit imports.
type LessonRepository interface {
	Catalog(ctx context.Context) (models.Catalog, error)
	Lesson(ctx context.Context, grade, subject, lessonID string) (models.Lesson, error)
	Import(ctx context.Context, grade, subject string, payload []byte) (models.LessonEntry, error)
	Validate(ctx context.Context) []LessonIssue
}

type fileLessonRepository struct {
	dir     string
	schema  *jsonschema.Schema
	mu      sync.RWMutex
	catalog models.Catalog
}

// NewFileLessonRepository loads metadata.json from dir.
func NewFileLessonRepository(dir string) (LessonRepository, error) {
	schema, err := compileLessonSchema()
	if err != nil {
		return nil, err
	}

	repo := &fileLessonRepository{dir: dir, schema: schema}
	catalog, err := repo.readCatalog()
	if err != nil {
		return nil, err
	}
	repo.catalog = catalog
	return repo, nil
}

func compileLessonSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("lesson.schema.json", bytes.NewReader([]byte(lessonSchemaSource))); err != nil {
		return nil, fmt.Errorf("load lesson schema: %w", err)
	}
	schema, err := compiler.Compile("lesson.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile lesson schema: %w", err)
	}
	return schema, nil
}

func (r *fileLessonRepository) metadataPath() string {
	return filepath.Join(r.dir, "metadata.json")
}

func (r *fileLessonRepository) readCatalog() (models.Catalog, error) {
	raw, err := os.ReadFile(r.metadataPath())
	if err != nil {
		return models.Catalog{}, fmt.Errorf("read lesson metadata: %w", err)
	}

	var catalog models.Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return models.Catalog{}, fmt.Errorf("parse lesson metadata: %w", err)
	}
	if catalog.Grades == nil {
		catalog.Grades = map[string]models.CatalogGrade{}
	}
	return catalog, nil
}

func (r *fileLessonRepository) Catalog(ctx context.Context) (models.Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneCatalog(r.catalog), nil
}

func cloneCatalog(in models.Catalog) models.Catalog {
	out := models.Catalog{Grades: make(map[string]models.CatalogGrade, len(in.Grades))}
	for gradeID, grade := range in.Grades {
		subjects := make(map[string]models.CatalogSubject, len(grade.Subjects))
		for subjectID, subject := range grade.Subjects {
			lessons := make([]models.LessonEntry, len(subject.Lessons))
			copy(lessons, subject.Lessons)
			subjects[subjectID] = models.CatalogSubject{Name: subject.Name, Lessons: lessons}
		}
		out.Grades[gradeID] = models.CatalogGrade{Name: grade.Name, Subjects: subjects}
	}
	return out
}

func (r *fileLessonRepository) entry(grade, subject, lessonID string) (models.LessonEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.catalog.Grades[grade]
	if !ok {
		return models.LessonEntry{}, fmt.Errorf("%w: grade %q", ErrLessonNotFound, grade)
	}
	s, ok := g.Subjects[subject]
	if !ok {
		return models.LessonEntry{}, fmt.Errorf("%w: subject %q", ErrLessonNotFound, subject)
	}
	for _, e := range s.Lessons {
		if e.ID == lessonID {
			return e, nil
		}
	}
	return models.LessonEntry{}, fmt.Errorf("%w: lesson %q", ErrLessonNotFound, lessonID)
}

func (r *fileLessonRepository) Lesson(ctx context.Context, grade, subject, lessonID string) (models.Lesson, error) {
	entry, err := r.entry(grade, subject, lessonID)
	if err != nil {
		return models.Lesson{}, err
	}

	raw, err := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(entry.File)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.Lesson{}, fmt.Errorf("%w: file %q", ErrLessonNotFound, entry.File)
		}
		return models.Lesson{}, fmt.Errorf("read lesson %s: %w", lessonID, err)
	}

	return r.decode(raw)
}

func (r *fileLessonRepository) decode(raw []byte) (models.Lesson, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Lesson{}, fmt.Errorf("%w: parse: %w", ErrInvalidLesson, err)
	}
	if err := r.schema.Validate(doc); err != nil {
		return models.Lesson{}, fmt.Errorf("%w: %w", ErrInvalidLesson, err)
	}

	var lesson models.Lesson
	if err := json.Unmarshal(raw, &lesson); err != nil {
		return models.Lesson{}, fmt.Errorf("%w: decode: %w", ErrInvalidLesson, err)
	}
	return lesson, nil
}

// Validate loads every lesson in the catalog and reports the ones that fail.
func (r *fileLessonRepository) Validate(ctx context.Context) []LessonIssue {
	catalog, _ := r.Catalog(ctx)

	var issues []LessonIssue
	for gradeID, grade := range catalog.Grades {
		for subjectID, subject := range grade.Subjects {
			for _, entry := range subject.Lessons {
				lesson, err := r.Lesson(ctx, gradeID, subjectID, entry.ID)
				if err == nil && lesson.ID != entry.ID {
					err = fmt.Errorf("file declares id %q", lesson.ID)
				}
				if err != nil {
					issues = append(issues, LessonIssue{Grade: gradeID, Subject: subjectID, LessonID: entry.ID, File: entry.File, Err: err})
				}
			}
		}
	}
	return issues
}

// Import validates payload, writes it under grade/subject and registers it in metadata.json.
func (r *fileLessonRepository) Import(ctx context.Context, grade, subject string, payload []byte) (models.LessonEntry, error) {
	lesson, err := r.decode(payload)
	if err != nil {
		return models.LessonEntry{}, err
	}
	if strings.ContainsAny(lesson.ID, `/\.`) {
		return models.LessonEntry{}, fmt.Errorf("%w: lesson id %q is not a file name", ErrInvalidLesson, lesson.ID)
	}

	entry := models.LessonEntry{
		ID:                   lesson.ID,
		Title:                lesson.Title,
		File:                 filepath.ToSlash(filepath.Join(grade, subject, lesson.ID+".json")),
		Difficulty:           lesson.Difficulty,
		EstimatedTimeMinutes: lesson.EstimatedTimeMinutes,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := filepath.Join(r.dir, filepath.FromSlash(entry.File))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return models.LessonEntry{}, fmt.Errorf("create lesson directory: %w", err)
	}
	if err := writeFileAtomic(target, payload); err != nil {
		return models.LessonEntry{}, err
	}

	g, ok := r.catalog.Grades[grade]
	if !ok {
		g = models.CatalogGrade{Name: grade, Subjects: map[string]models.CatalogSubject{}}
	}
	if g.Subjects == nil {
		g.Subjects = map[string]models.CatalogSubject{}
	}
	s, ok := g.Subjects[subject]
	if !ok {
		s = models.CatalogSubject{Name: subject}
	}

	replaced := false
	for i := range s.Lessons {
		if s.Lessons[i].ID == entry.ID {
			s.Lessons[i] = entry
			replaced = true
		}
	}
	if !replaced {
		s.Lessons = append(s.Lessons, entry)
	}
	g.Subjects[subject] = s
	r.catalog.Grades[grade] = g

	encoded, err := json.MarshalIndent(r.catalog, "", "  ")
	if err != nil {
		return models.LessonEntry{}, fmt.Errorf("encode lesson metadata: %w", err)
	}
	if err := writeFileAtomic(r.metadataPath(), encoded); err != nil {
		return models.LessonEntry{}, err
	}

	return entry, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
