package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
)

func singleCriterionScheme() models.RubricScheme {
	return models.RubricScheme{
		ID: "scheme-1",
		Criteria: []models.Criterion{
			{
				ID:    "crit-1",
				Title: "Analysis",
				Levels: []models.Level{
					{ID: "lvl-excellent", Name: "Excellent", Points: 4},
					{ID: "lvl-good", Name: "Good", Points: 3},
				},
			},
		},
	}
}

func TestCriterionMaxPoints(t *testing.T) {
	criterion := models.Criterion{
		ID: "crit-1",
		Levels: []models.Level{
			{ID: "a", Points: 2},
			{ID: "b", Points: 7},
			{ID: "c", Points: 4},
		},
	}
	max, err := CriterionMaxPoints(criterion)
	require.NoError(t, err)
	assert.Equal(t, 7.0, max)
}

func TestCriterionMaxPointsEmptyLevels(t *testing.T) {
	_, err := CriterionMaxPoints(models.Criterion{ID: "crit-empty"})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrEmptyLevels)
	assert.Contains(t, err.Error(), "criterion has no levels")
}

func TestTotalScoreSelectedLevel(t *testing.T) {
	scheme := singleCriterionScheme()
	grade := models.SubmissionGrade{Selections: map[string]string{"crit-1": "lvl-good"}}

	total := TotalScore(grade, scheme)
	max, err := SchemeMaxPoints(scheme)
	require.NoError(t, err)
	pct, defined, err := Percentage(grade, scheme)
	require.NoError(t, err)

	assert.Equal(t, 3.0, total)
	assert.Equal(t, 4.0, max)
	assert.True(t, defined)
	assert.Equal(t, 75.0, pct)
}

func TestTotalScoreOverrideWins(t *testing.T) {
	scheme := singleCriterionScheme()
	grade := models.SubmissionGrade{
		Selections: map[string]string{"crit-1": "lvl-good"},
		Overrides:  map[string]float64{"crit-1": 3.5},
	}
	assert.Equal(t, 3.5, TotalScore(grade, scheme))
}

func TestTotalScoreNoSelectionContributesZero(t *testing.T) {
	scheme := singleCriterionScheme()
	assert.Equal(t, 0.0, TotalScore(models.SubmissionGrade{}, scheme))
}

func TestPercentageUndefinedForZeroMaxScheme(t *testing.T) {
	scheme := models.RubricScheme{Criteria: []models.Criterion{
		{ID: "crit-1", Levels: []models.Level{{ID: "only", Points: 0}}},
	}}
	_, defined, err := Percentage(models.SubmissionGrade{}, scheme)
	require.NoError(t, err)
	assert.False(t, defined)
}

func TestSchemeMaxPointsPermutationInvariant(t *testing.T) {
	a := models.Criterion{ID: "a", Levels: []models.Level{{ID: "a1", Points: 5}}}
	b := models.Criterion{ID: "b", Levels: []models.Level{{ID: "b1", Points: 3}, {ID: "b2", Points: 8}}}
	c := models.Criterion{ID: "c", Levels: []models.Level{{ID: "c1", Points: 2}}}

	grade := models.SubmissionGrade{Selections: map[string]string{"a": "a1", "b": "b2"}}

	forward := models.RubricScheme{Criteria: []models.Criterion{a, b, c}}
	reversed := models.RubricScheme{Criteria: []models.Criterion{c, b, a}}

	maxForward, err := SchemeMaxPoints(forward)
	require.NoError(t, err)
	maxReversed, err := SchemeMaxPoints(reversed)
	require.NoError(t, err)

	assert.Equal(t, maxForward, maxReversed)
	assert.Equal(t, TotalScore(grade, forward), TotalScore(grade, reversed))
}

func TestGradeForPercentage(t *testing.T) {
	table := models.GradingBoundary{Boundaries: []models.Boundary{
		{Grade: "A", MinPercentage: 90, MaxPercentage: 100, Color: "#4caf50"},
		{Grade: "B", MinPercentage: 80, MaxPercentage: 89, Color: "#8bc34a"},
	}}

	boundary, ok := GradeForPercentage(85, table)
	require.True(t, ok)
	assert.Equal(t, "B", boundary.Grade)

	_, ok = GradeForPercentage(50, table)
	assert.False(t, ok)
}

func TestGradeForPercentageOverlapResolvedByHighestMin(t *testing.T) {
	table := models.GradingBoundary{Boundaries: []models.Boundary{
		{Grade: "Pass", MinPercentage: 50, MaxPercentage: 100},
		{Grade: "Merit", MinPercentage: 70, MaxPercentage: 100},
		{Grade: "Distinction", MinPercentage: 85, MaxPercentage: 100},
	}}

	boundary, ok := GradeForPercentage(90, table)
	require.True(t, ok)
	assert.Equal(t, "Distinction", boundary.Grade)

	boundary, ok = GradeForPercentage(75, table)
	require.True(t, ok)
	assert.Equal(t, "Merit", boundary.Grade)
}

func TestGradeForPercentageOrderIndependent(t *testing.T) {
	boundaries := []models.Boundary{
		{Grade: "A", MinPercentage: 90, MaxPercentage: 100},
		{Grade: "B", MinPercentage: 80, MaxPercentage: 89},
		{Grade: "C", MinPercentage: 70, MaxPercentage: 79},
	}
	forward := models.GradingBoundary{Boundaries: boundaries}
	shuffled := models.GradingBoundary{Boundaries: []models.Boundary{boundaries[2], boundaries[0], boundaries[1]}}

	for _, pct := range []float64{65, 70, 75.5, 80, 89, 90, 100} {
		a, okA := GradeForPercentage(pct, forward)
		b, okB := GradeForPercentage(pct, shuffled)
		assert.Equal(t, okA, okB, "pct %v", pct)
		assert.Equal(t, a.Grade, b.Grade, "pct %v", pct)
	}
}

func TestSummarize(t *testing.T) {
	scheme := singleCriterionScheme()
	table := models.GradingBoundary{Boundaries: []models.Boundary{
		{Grade: "A", MinPercentage: 90, MaxPercentage: 100, Color: "#4caf50"},
		{Grade: "B", MinPercentage: 70, MaxPercentage: 89, Color: "#8bc34a"},
	}}
	grade := models.SubmissionGrade{Selections: map[string]string{"crit-1": "lvl-good"}}

	summary, err := Summarize(grade, scheme, table)
	require.NoError(t, err)
	assert.Equal(t, 3.0, summary.TotalScore)
	assert.Equal(t, 4.0, summary.MaxPoints)
	require.NotNil(t, summary.Percentage)
	assert.Equal(t, 75.0, *summary.Percentage)
	assert.Equal(t, "B", summary.Letter)
	assert.Equal(t, "#8bc34a", summary.Color)
}

func TestSummarizeNoMatchFallsBackToNeutral(t *testing.T) {
	scheme := singleCriterionScheme()
	table := models.GradingBoundary{Boundaries: []models.Boundary{
		{Grade: "A", MinPercentage: 90, MaxPercentage: 100},
	}}
	grade := models.SubmissionGrade{Selections: map[string]string{"crit-1": "lvl-good"}}

	summary, err := Summarize(grade, scheme, table)
	require.NoError(t, err)
	assert.Equal(t, GradeNotAvailable, summary.Letter)
	assert.Equal(t, NeutralColor, summary.Color)
}

func TestSummarizeZeroMaxScheme(t *testing.T) {
	scheme := models.RubricScheme{Criteria: []models.Criterion{
		{ID: "crit-1", Levels: []models.Level{{ID: "only", Points: 0}}},
	}}
	summary, err := Summarize(models.SubmissionGrade{}, scheme, models.GradingBoundary{})
	require.NoError(t, err)
	assert.Nil(t, summary.Percentage)
	assert.Equal(t, GradeNotAvailable, summary.Letter)
}
