package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupProgressTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

const testLessonJSON = `{
  "id": "fractions_basic",
  "title": "Introduction to Fractions",
  "difficulty": "beginner",
  "estimated_time_minutes": 20,
  "prerequisites": [],
  "sections": [{
    "id": "section_1",
    "title": "What is a fraction?",
    "content": "Top and bottom numbers.",
    "questions": [{
      "id": "q1",
      "question": "What is the top number of a fraction called?",
      "answer": "numerator",
      "evaluation_criteria": ["the numerator"],
      "hints": ["It sits above the line."],
      "context": "fractions"
    }]
  }],
  "next_lessons": []
}`

func writeLessonFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "grade_5", "math"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grade_5", "math", "fractions_basic.json"), []byte(testLessonJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(`{
  "grades": {"grade_5": {"name": "Grade 5", "subjects": {"math": {"name": "Mathematics", "lessons": [
    {"id": "fractions_basic", "title": "Introduction to Fractions", "file": "grade_5/math/fractions_basic.json"},
    {"id": "missing_file", "title": "Missing", "file": "grade_5/math/missing.json"}
  ]}}}}
}`), 0o644))
	return dir
}
