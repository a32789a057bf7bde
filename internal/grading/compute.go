// Package grading implements the deterministic rubric computations: criterion
// and scheme maxima, submission totals, percentages and letter grade lookup.
// Everything in here is pure; persistence and schema normalisation live
// elsewhere.
package grading

import (
	"fmt"
	"sort"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
)

// Fallbacks used when no boundary matches a percentage. The neutral colour is
// deliberately not an error colour; a gap in the boundary table is a product
// decision, not a defect.
const (
	GradeNotAvailable = "N/A"
	NeutralColor      = "#9e9e9e"
)

// CriterionMaxPoints returns the maximum achievable points of a criterion.
// Level points are not required to be monotonic by declaration order. A
// criterion without levels is a data-integrity error, not a zero contribution.
func CriterionMaxPoints(criterion models.Criterion) (float64, error) {
	if len(criterion.Levels) == 0 {
		return 0, appErrors.Wrap(
			fmt.Errorf("criterion %q", criterion.ID),
			appErrors.ErrEmptyLevels.Code, appErrors.ErrEmptyLevels.Status, appErrors.ErrEmptyLevels.Message,
		)
	}
	max := criterion.Levels[0].Points
	for _, level := range criterion.Levels[1:] {
		if level.Points > max {
			max = level.Points
		}
	}
	return max, nil
}

// SchemeMaxPoints sums the criterion maxima across the scheme.
func SchemeMaxPoints(scheme models.RubricScheme) (float64, error) {
	total := 0.0
	for _, criterion := range scheme.Criteria {
		max, err := CriterionMaxPoints(criterion)
		if err != nil {
			return 0, err
		}
		total += max
	}
	return total, nil
}

// TotalScore sums the grade's contribution per criterion: a point override
// when present, otherwise the selected level's points, otherwise zero.
func TotalScore(grade models.SubmissionGrade, scheme models.RubricScheme) float64 {
	total := 0.0
	for _, criterion := range scheme.Criteria {
		if override, ok := grade.Overrides[criterion.ID]; ok {
			total += override
			continue
		}
		levelID, ok := grade.Selections[criterion.ID]
		if !ok {
			continue
		}
		for _, level := range criterion.Levels {
			if level.ID == levelID {
				total += level.Points
				break
			}
		}
	}
	return total
}

// Percentage computes 100*total/max. The second return value is false when the
// scheme has zero achievable points; the percentage is undefined then, not
// zero.
func Percentage(grade models.SubmissionGrade, scheme models.RubricScheme) (float64, bool, error) {
	max, err := SchemeMaxPoints(scheme)
	if err != nil {
		return 0, false, err
	}
	if max == 0 {
		return 0, false, nil
	}
	return 100 * TotalScore(grade, scheme) / max, true, nil
}

// GradeForPercentage finds the boundary containing pct. Boundaries are
// considered highest MinPercentage first, which both resolves overlaps
// deterministically and makes the result independent of source ordering. The
// boolean is false when no boundary matches; callers render GradeNotAvailable
// with NeutralColor in that case.
func GradeForPercentage(pct float64, table models.GradingBoundary) (models.Boundary, bool) {
	ordered := make([]models.Boundary, len(table.Boundaries))
	copy(ordered, table.Boundaries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].MinPercentage != ordered[j].MinPercentage {
			return ordered[i].MinPercentage > ordered[j].MinPercentage
		}
		// Equal minima: narrower range first keeps the tie-break fixed.
		return ordered[i].MaxPercentage < ordered[j].MaxPercentage
	})
	for _, boundary := range ordered {
		if pct >= boundary.MinPercentage && pct <= boundary.MaxPercentage {
			return boundary, true
		}
	}
	return models.Boundary{}, false
}

// Summarize runs the full pipeline for one submission grade: total, maximum,
// percentage and letter lookup. It is the single entry point handlers and
// exports call.
func Summarize(grade models.SubmissionGrade, scheme models.RubricScheme, table models.GradingBoundary) (models.GradeSummary, error) {
	max, err := SchemeMaxPoints(scheme)
	if err != nil {
		return models.GradeSummary{}, err
	}
	summary := models.GradeSummary{
		TotalScore: TotalScore(grade, scheme),
		MaxPoints:  max,
		Letter:     GradeNotAvailable,
		Color:      NeutralColor,
	}
	if max == 0 {
		return summary, nil
	}
	pct := 100 * summary.TotalScore / max
	summary.Percentage = &pct
	if boundary, ok := GradeForPercentage(pct, table); ok {
		summary.Letter = boundary.Grade
		if boundary.Color != "" {
			summary.Color = boundary.Color
		}
	}
	return summary, nil
}
