package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/evaluation"
)

func newLessonService(t *testing.T) LessonService {
	t.Helper()
	return NewLessonService(newLessonRepo(t), nil, time.Minute, zerolog.Nop())
}

func TestLessonServiceCatalog(t *testing.T) {
	svc := newLessonService(t)
	ctx := context.Background()

	grades, err := svc.ListGrades(ctx)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	require.Equal(t, "grade_5", grades[0].ID)
	require.Equal(t, []string{"english", "math"}, grades[0].Subjects)

	subjects, err := svc.ListSubjects(ctx, "grade_5")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	require.Equal(t, "math", subjects[1].ID)
	require.Equal(t, 2, subjects[1].LessonCount)

	_, err = svc.ListSubjects(ctx, "grade_9")
	require.ErrorIs(t, err, evaluation.ErrNotFound)

	lessons, err := svc.ListLessons(ctx, "grade_5", "math")
	require.NoError(t, err)
	require.Equal(t, "fractions_basic", lessons[0].ID)

	_, err = svc.ListLessons(ctx, "grade_5", "art")
	require.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestLessonServiceGetQuestionMapsContent(t *testing.T) {
	svc := newLessonService(t)

	q, err := svc.GetQuestion(context.Background(), dto.QuestionRef{
		Grade: "grade_5", Subject: "math", LessonID: "fractions_basic", SectionID: "section_1", QuestionID: "q1",
	})
	require.NoError(t, err)
	require.Equal(t, "numerator", q.ExpectedAnswer)
	require.Equal(t, "What is the top number of a fraction called?", q.Prompt)
	require.Contains(t, q.AcceptableVariants, "the numerator")
	require.Len(t, q.Hints, 3)
	require.Equal(t, "fractions", q.Topic)

	for _, ref := range []dto.QuestionRef{
		{Grade: "grade_5", Subject: "math", LessonID: "nope", SectionID: "section_1", QuestionID: "q1"},
		{Grade: "grade_5", Subject: "math", LessonID: "fractions_basic", SectionID: "section_9", QuestionID: "q1"},
		{Grade: "grade_5", Subject: "math", LessonID: "fractions_basic", SectionID: "section_1", QuestionID: "q9"},
	} {
		_, err := svc.GetQuestion(context.Background(), ref)
		require.ErrorIs(t, err, evaluation.ErrNotFound, ref)
	}
}

func TestLessonServicePrerequisitesAndNext(t *testing.T) {
	svc := newLessonService(t)
	ctx := context.Background()

	check, err := svc.CheckPrerequisites(ctx, "grade_5", "math", "fractions_compare", nil)
	require.NoError(t, err)
	require.False(t, check.CanStart)
	require.Equal(t, []string{"fractions_basic"}, check.Missing)

	check, err = svc.CheckPrerequisites(ctx, "grade_5", "math", "fractions_compare", []string{"fractions_basic"})
	require.NoError(t, err)
	require.True(t, check.CanStart)

	next, err := svc.NextLessons(ctx, "grade_5", "math", "fractions_basic")
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Equal(t, "Comparing Fractions", next[0].Title)
}

func TestLessonServiceSearch(t *testing.T) {
	svc := newLessonService(t)

	results, err := svc.Search(context.Background(), "FRACTION")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Mathematics", results[0].SubjectName)

	results, err = svc.Search(context.Background(), "poetry_")
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, err = svc.Search(context.Background(), "  ")
	require.ErrorIs(t, err, evaluation.ErrInvalidInput)
}

func TestLessonServiceCachesLessonsInRedis(t *testing.T) {
	mr, client := newTestRedis(t)
	svc := NewLessonService(newLessonRepo(t), client, time.Minute, zerolog.Nop())

	_, err := svc.GetLesson(context.Background(), "grade_5", "english", "poetry_basics")
	require.NoError(t, err)
	require.True(t, mr.Exists(lessonCacheKey("grade_5", "english", "poetry_basics")))

	lesson, err := svc.GetLesson(context.Background(), "grade_5", "english", "poetry_basics")
	require.NoError(t, err)
	require.Equal(t, "Parts of a Poem", lesson.Title)
}

func TestLessonServiceImport(t *testing.T) {
	svc := newLessonService(t)
	ctx := context.Background()

	payload := []byte(`{
  "id": "rhyme",
  "title": "Rhyming Words",
  "sections": [{"id": "s1", "title": "Rhymes", "content": "Cat and hat rhyme.",
    "questions": [{"id": "q1", "question": "Which word rhymes with cat?", "answer": "hat"}]}]
}`)
	resp, err := svc.Import(ctx, "grade_5", "english", payload)
	require.NoError(t, err)
	require.Equal(t, "rhyme", resp.Lesson.ID)

	q, err := svc.GetQuestion(ctx, dto.QuestionRef{Grade: "grade_5", Subject: "english", LessonID: "rhyme", SectionID: "s1", QuestionID: "q1"})
	require.NoError(t, err)
	require.Equal(t, "Rhyming Words", q.Topic)

	_, err = svc.Import(ctx, "grade_5", "english", []byte("just some words"))
	require.ErrorIs(t, err, evaluation.ErrInvalidInput)

	_, err = svc.Import(ctx, "grade_5", "english", []byte(`{"id": "broken"}`))
	require.ErrorIs(t, err, evaluation.ErrInvalidInput)

	_, err = svc.Import(ctx, "../etc", "english", payload)
	require.ErrorIs(t, err, evaluation.ErrInvalidInput)
}

func TestToLessonResponseHidesAnswers(t *testing.T) {
	svc := newLessonService(t)
	lesson, err := svc.GetLesson(context.Background(), "grade_5", "math", "fractions_basic")
	require.NoError(t, err)

	resp := ToLessonResponse(lesson)
	require.Len(t, resp.Sections, 2)
	require.Equal(t, 3, resp.Sections[0].Questions[0].HintCount)
	require.Equal(t, []string{"fractions_compare"}, resp.NextLessons)
}
