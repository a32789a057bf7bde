// Package schema normalises the structured JSON persisted in the
// markScheme.structured and gradingBoundary.structured columns. Two historical
// rubric encodings exist; both are resolved here, once, at the system
// boundary. Nothing downstream branches on the legacy shape again.
package schema

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
)

// Synthesized level names and colours for legacy items, ordered best first.
var legacyLevelNames = [4]string{"Excellent", "Good", "Satisfactory", "Needs Improvement"}

var legacyLevelColors = [4]string{"#4caf50", "#8bc34a", "#ffc107", "#f44336"}

var legacyLevelFractions = [4]float64{1, 0.75, 0.5, 0.25}

const legacyDescriptionFallback = "No description provided"

// The structured columns were written by browser clients, so the wire casing
// is camelCase regardless of what this API serves.
type rawLevel struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Points      float64 `json:"points"`
	Color       string  `json:"color"`
}

type rawCriterion struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Levels      []rawLevel `json:"levels"`
}

type rawLegacyItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	MaxPoints float64  `json:"maxPoints"`
	Criteria  []string `json:"criteria"`
}

type rawScheme struct {
	ID       string          `json:"id"`
	Criteria json.RawMessage `json:"criteria"`
	Items    json.RawMessage `json:"items"`
}

type rawBoundary struct {
	Grade         string  `json:"grade"`
	MinPercentage float64 `json:"minPercentage"`
	MaxPercentage float64 `json:"maxPercentage"`
	Description   string  `json:"description"`
	Color         string  `json:"color"`
}

type rawBoundaryTable struct {
	ID         string        `json:"id"`
	Boundaries []rawBoundary `json:"boundaries"`
}

// NormalizeScheme turns either rubric encoding into the canonical shape.
// Presence of "criteria" marks the canonical encoding, "items" the legacy one.
// Anything else fails with ErrUnrecognizedSchema; callers degrade to an empty
// scheme because grading display is best-effort.
func NormalizeScheme(raw []byte) (models.RubricScheme, error) {
	var parsed rawScheme
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.RubricScheme{}, unrecognized(err)
	}

	switch {
	case parsed.Criteria != nil:
		var criteria []rawCriterion
		if err := json.Unmarshal(parsed.Criteria, &criteria); err != nil {
			return models.RubricScheme{}, unrecognized(err)
		}
		return canonicalScheme(parsed.ID, criteria), nil
	case parsed.Items != nil:
		var items []rawLegacyItem
		if err := json.Unmarshal(parsed.Items, &items); err != nil {
			return models.RubricScheme{}, unrecognized(err)
		}
		return convertLegacyItems(parsed.ID, items), nil
	default:
		return models.RubricScheme{}, unrecognized(fmt.Errorf("neither criteria nor items present"))
	}
}

// NormalizeBoundaries parses grading boundary JSON. The canonical encoding
// wraps the table in a "boundaries" key; the legacy one is a bare array.
func NormalizeBoundaries(raw []byte) (models.GradingBoundary, error) {
	var table rawBoundaryTable
	if err := json.Unmarshal(raw, &table); err == nil && table.Boundaries != nil {
		return canonicalBoundaries(table.ID, table.Boundaries), nil
	}

	var flat []rawBoundary
	if err := json.Unmarshal(raw, &flat); err == nil && flat != nil {
		return canonicalBoundaries("", flat), nil
	}

	return models.GradingBoundary{}, unrecognized(fmt.Errorf("no boundary table found"))
}

func canonicalScheme(id string, criteria []rawCriterion) models.RubricScheme {
	scheme := models.RubricScheme{ID: id, Criteria: make([]models.Criterion, 0, len(criteria))}
	for _, rc := range criteria {
		criterion := models.Criterion{
			ID:          rc.ID,
			Title:       rc.Title,
			Description: rc.Description,
			Levels:      make([]models.Level, 0, len(rc.Levels)),
		}
		for _, rl := range rc.Levels {
			criterion.Levels = append(criterion.Levels, models.Level{
				ID:          rl.ID,
				Name:        rl.Name,
				Description: rl.Description,
				Points:      rl.Points,
				Color:       rl.Color,
			})
		}
		scheme.Criteria = append(scheme.Criteria, criterion)
	}
	return scheme
}

// convertLegacyItems synthesises four fixed levels per item. Points step down
// as maxPoints, floor(.75·max), floor(.5·max), floor(.25·max); descriptions
// come from the item's textual criteria when present.
func convertLegacyItems(id string, items []rawLegacyItem) models.RubricScheme {
	scheme := models.RubricScheme{ID: id, Criteria: make([]models.Criterion, 0, len(items))}
	for i, item := range items {
		criterionID := item.ID
		if criterionID == "" {
			criterionID = fmt.Sprintf("item-%d", i)
		}
		criterion := models.Criterion{
			ID:     criterionID,
			Title:  item.Title,
			Levels: make([]models.Level, 0, len(legacyLevelNames)),
		}
		for j, name := range legacyLevelNames {
			points := item.MaxPoints
			if j > 0 {
				points = math.Floor(item.MaxPoints * legacyLevelFractions[j])
			}
			description := legacyDescriptionFallback
			if j < len(item.Criteria) && item.Criteria[j] != "" {
				description = item.Criteria[j]
			}
			criterion.Levels = append(criterion.Levels, models.Level{
				ID:          fmt.Sprintf("%s-level-%d", criterionID, j),
				Name:        name,
				Description: description,
				Points:      points,
				Color:       legacyLevelColors[j],
			})
		}
		scheme.Criteria = append(scheme.Criteria, criterion)
	}
	return scheme
}

func canonicalBoundaries(id string, boundaries []rawBoundary) models.GradingBoundary {
	table := models.GradingBoundary{ID: id, Boundaries: make([]models.Boundary, 0, len(boundaries))}
	for _, rb := range boundaries {
		table.Boundaries = append(table.Boundaries, models.Boundary{
			Grade:         rb.Grade,
			MinPercentage: rb.MinPercentage,
			MaxPercentage: rb.MaxPercentage,
			Description:   rb.Description,
			Color:         rb.Color,
		})
	}
	return table
}

func unrecognized(err error) *appErrors.Error {
	return appErrors.Wrap(err,
		appErrors.ErrUnrecognizedSchema.Code,
		appErrors.ErrUnrecognizedSchema.Status,
		appErrors.ErrUnrecognizedSchema.Message,
	)
}
