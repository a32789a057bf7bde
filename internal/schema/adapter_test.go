package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-sync-api/internal/grading"
	"github.com/noah-isme/classroom-sync-api/internal/models"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
)

func TestNormalizeSchemeCanonicalPassthrough(t *testing.T) {
	raw := []byte(`{
		"id": "scheme-1",
		"criteria": [
			{"id": "c1", "title": "Analysis", "levels": [
				{"id": "l1", "name": "Excellent", "points": 4, "color": "#4caf50"},
				{"id": "l2", "name": "Good", "points": 3}
			]}
		]
	}`)

	scheme, err := NormalizeScheme(raw)
	require.NoError(t, err)
	require.Len(t, scheme.Criteria, 1)
	assert.Equal(t, "scheme-1", scheme.ID)
	assert.Equal(t, "Analysis", scheme.Criteria[0].Title)
	require.Len(t, scheme.Criteria[0].Levels, 2)
	assert.Equal(t, 4.0, scheme.Criteria[0].Levels[0].Points)
}

func TestNormalizeSchemeLegacyItems(t *testing.T) {
	raw := []byte(`{"items":[{"maxPoints":8, "criteria":["great","ok","meh","bad"]}]}`)

	scheme, err := NormalizeScheme(raw)
	require.NoError(t, err)
	require.Len(t, scheme.Criteria, 1)

	levels := scheme.Criteria[0].Levels
	require.Len(t, levels, 4)

	assert.Equal(t, "Excellent", levels[0].Name)
	assert.Equal(t, "Good", levels[1].Name)
	assert.Equal(t, "Satisfactory", levels[2].Name)
	assert.Equal(t, "Needs Improvement", levels[3].Name)

	assert.Equal(t, 8.0, levels[0].Points)
	assert.Equal(t, 6.0, levels[1].Points)
	assert.Equal(t, 4.0, levels[2].Points)
	assert.Equal(t, 2.0, levels[3].Points)

	assert.Equal(t, "great", levels[0].Description)
	assert.Equal(t, "bad", levels[3].Description)
}

func TestNormalizeSchemeLegacyItemsFloorsPoints(t *testing.T) {
	raw := []byte(`{"items":[{"maxPoints":10, "criteria":[]}]}`)

	scheme, err := NormalizeScheme(raw)
	require.NoError(t, err)
	levels := scheme.Criteria[0].Levels
	assert.Equal(t, 10.0, levels[0].Points)
	assert.Equal(t, 7.0, levels[1].Points)
	assert.Equal(t, 5.0, levels[2].Points)
	assert.Equal(t, 2.0, levels[3].Points)
	for _, level := range levels {
		assert.Equal(t, "No description provided", level.Description)
	}
}

func TestNormalizeSchemeLegacyMonotonicity(t *testing.T) {
	raw := []byte(`{"items":[
		{"id":"low","maxPoints":4},
		{"id":"mid","maxPoints":8},
		{"id":"high","maxPoints":12}
	]}`)

	scheme, err := NormalizeScheme(raw)
	require.NoError(t, err)
	require.Len(t, scheme.Criteria, 3)

	// Relative ordering of scores must follow the original maxPoints values.
	var scores []float64
	for _, criterion := range scheme.Criteria {
		grade := models.SubmissionGrade{Selections: map[string]string{
			criterion.ID: criterion.Levels[1].ID,
		}}
		single := models.RubricScheme{Criteria: []models.Criterion{criterion}}
		scores = append(scores, grading.TotalScore(grade, single))
	}
	assert.Less(t, scores[0], scores[1])
	assert.Less(t, scores[1], scores[2])
}

func TestNormalizeSchemeUnrecognized(t *testing.T) {
	for name, raw := range map[string][]byte{
		"neither key": []byte(`{"foo": 1}`),
		"malformed":   []byte(`{"items": [`),
		"not json":    []byte(`hello`),
	} {
		_, err := NormalizeScheme(raw)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, appErrors.ErrUnrecognizedSchema, name)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr), name)
		assert.Equal(t, appErrors.ErrUnrecognizedSchema.Code, appErr.Code, name)
	}
}

func TestNormalizeBoundariesCanonical(t *testing.T) {
	raw := []byte(`{"id":"table-1","boundaries":[
		{"grade":"A","minPercentage":90,"maxPercentage":100,"color":"#4caf50"},
		{"grade":"B","minPercentage":80,"maxPercentage":89}
	]}`)

	table, err := NormalizeBoundaries(raw)
	require.NoError(t, err)
	require.Len(t, table.Boundaries, 2)
	assert.Equal(t, "A", table.Boundaries[0].Grade)
	assert.Equal(t, 90.0, table.Boundaries[0].MinPercentage)
}

func TestNormalizeBoundariesLegacyFlatArray(t *testing.T) {
	raw := []byte(`[{"grade":"Pass","minPercentage":50,"maxPercentage":100}]`)

	table, err := NormalizeBoundaries(raw)
	require.NoError(t, err)
	require.Len(t, table.Boundaries, 1)
	assert.Equal(t, "Pass", table.Boundaries[0].Grade)
}

func TestNormalizeBoundariesUnrecognized(t *testing.T) {
	_, err := NormalizeBoundaries([]byte(`{"grades": true}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnrecognizedSchema)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnrecognizedSchema.Code, appErr.Code)
}
