package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/grading"
	"github.com/noah-isme/classroom-sync-api/internal/models"
	appErrors "github.com/noah-isme/classroom-sync-api/pkg/errors"
	"github.com/noah-isme/classroom-sync-api/pkg/export"
)

type submissionLister interface {
	List(ctx context.Context, filter models.RecordFilter, limit, offset int) ([]models.StoredRecord, error)
}

type gradeSummarizer interface {
	SchemeForClass(ctx context.Context, classID string) (models.RubricScheme, error)
	BoundariesForClass(ctx context.Context, classID string) (models.GradingBoundary, error)
}

// ExportFormat names a grade sheet rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult bundles rendered bytes with their content type and filename.
type ExportResult struct {
	ContentType string
	Filename    string
	Data        []byte
}

// ExportService renders class grade sheets. One row per submission, with the
// computed total, percentage and letter next to the stored identifiers.
type ExportService struct {
	submissions submissionLister
	grades      gradeSummarizer
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(submissions submissionLister, grades gradeSummarizer, logger *zap.Logger) *ExportService {
	return &ExportService{
		submissions: submissions,
		grades:      grades,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

var gradeSheetHeaders = []string{"Submission ID", "Student", "Total", "Max", "Percentage", "Grade"}

// GradeSheet renders the grade sheet of a class in the requested format.
func (s *ExportService) GradeSheet(ctx context.Context, classID string, format ExportFormat) (*ExportResult, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}

	scheme, err := s.grades.SchemeForClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	table, err := s.grades.BoundariesForClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	stored, err := s.submissions.List(ctx, models.RecordFilter{
		ClassID: classID,
		Kind:    models.RecordKindSubmission,
	}, 500, 0)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	dataset := export.Dataset{Headers: gradeSheetHeaders, Rows: make([]map[string]string, 0, len(stored))}
	for i := range stored {
		dataset.Rows = append(dataset.Rows, s.gradeSheetRow(&stored[i], scheme, table))
	}

	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Grade Sheet %s", classID))
		if err != nil {
			return nil, fmt.Errorf("render grade sheet pdf: %w", err)
		}
		return &ExportResult{
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("grade-sheet-%s.pdf", classID),
			Data:        data,
		}, nil
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, fmt.Errorf("render grade sheet csv: %w", err)
		}
		return &ExportResult{
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("grade-sheet-%s.csv", classID),
			Data:        data,
		}, nil
	}
}

func (s *ExportService) gradeSheetRow(stored *models.StoredRecord, scheme models.RubricScheme, table models.GradingBoundary) map[string]string {
	student := ""
	grade := models.SubmissionGrade{}
	if len(stored.Fields) > 0 {
		var doc struct {
			StudentName string                  `json:"student_name"`
			Grade       *models.SubmissionGrade `json:"grade"`
		}
		if err := json.Unmarshal(stored.Fields, &doc); err != nil {
			s.logger.Warn("submission fields unreadable in export",
				zap.String("submission_id", stored.ID), zap.Error(err))
		} else {
			student = doc.StudentName
			if doc.Grade != nil {
				grade = *doc.Grade
			}
		}
	}

	row := map[string]string{
		"Submission ID": stored.ID,
		"Student":       student,
		"Total":         "",
		"Max":           "",
		"Percentage":    "",
		"Grade":         grading.GradeNotAvailable,
	}

	summary, err := grading.Summarize(grade, scheme, table)
	if err != nil {
		s.logger.Warn("grade summary degraded in export",
			zap.String("submission_id", stored.ID), zap.Error(err))
		return row
	}
	row["Total"] = strconv.FormatFloat(summary.TotalScore, 'f', -1, 64)
	row["Max"] = strconv.FormatFloat(summary.MaxPoints, 'f', -1, 64)
	if summary.Percentage != nil {
		row["Percentage"] = fmt.Sprintf("%.1f%%", *summary.Percentage)
	}
	row["Grade"] = summary.Letter
	return row
}
