package models

// Level is a selectable achievement step within a criterion.
type Level struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Points      float64 `json:"points"`
	Color       string  `json:"color,omitempty"`
}

// Criterion groups an ordered set of levels. The maximum achievable points of
// a criterion is the maximum level points, not necessarily the last declared.
type Criterion struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Levels      []Level `json:"levels"`
}

// RubricScheme is the canonical mark scheme shape.
type RubricScheme struct {
	ID       string      `json:"id,omitempty"`
	Criteria []Criterion `json:"criteria"`
}

// Empty reports whether the scheme carries no criteria.
func (s RubricScheme) Empty() bool {
	return len(s.Criteria) == 0
}

// Boundary maps a percentage range onto a letter grade. Source data may
// overlap or leave gaps between boundaries.
type Boundary struct {
	Grade         string  `json:"grade"`
	MinPercentage float64 `json:"min_percentage"`
	MaxPercentage float64 `json:"max_percentage"`
	Description   string  `json:"description,omitempty"`
	Color         string  `json:"color,omitempty"`
}

// GradingBoundary is the canonical percentage-to-letter lookup table.
type GradingBoundary struct {
	ID         string     `json:"id,omitempty"`
	Boundaries []Boundary `json:"boundaries"`
}

// SubmissionGrade captures a grader's per-criterion selections for one
// submission, optional point overrides and free-text comments.
type SubmissionGrade struct {
	Selections map[string]string  `json:"selections"`
	Overrides  map[string]float64 `json:"overrides,omitempty"`
	Comments   map[string]string  `json:"comments,omitempty"`
}

// GradeSummary is the computed outcome for a submission grade. Percentage is
// nil when the scheme has zero achievable points.
type GradeSummary struct {
	TotalScore float64  `json:"total_score"`
	MaxPoints  float64  `json:"max_points"`
	Percentage *float64 `json:"percentage,omitempty"`
	Letter     string   `json:"letter"`
	Color      string   `json:"color,omitempty"`
}
