package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-sync-api/internal/models"
	"github.com/noah-isme/classroom-sync-api/internal/service"
	"github.com/noah-isme/classroom-sync-api/pkg/config"
)

type schemeRepoMock struct {
	docs map[string]models.StoredScheme
}

func schemeMockKey(classID string, kind models.SchemeKind) string {
	return classID + "/" + string(kind)
}

func (m *schemeRepoMock) Save(ctx context.Context, classID string, kind models.SchemeKind, body json.RawMessage) (*models.StoredScheme, error) {
	if m.docs == nil {
		m.docs = make(map[string]models.StoredScheme)
	}
	doc := models.StoredScheme{ID: "doc-new", ClassID: classID, Kind: kind, Version: 1, Body: body, CreatedAt: time.Now()}
	m.docs[schemeMockKey(classID, kind)] = doc
	return &doc, nil
}

func (m *schemeRepoMock) Latest(ctx context.Context, classID string, kind models.SchemeKind) (*models.StoredScheme, error) {
	doc, ok := m.docs[schemeMockKey(classID, kind)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (m *schemeRepoMock) Versions(ctx context.Context, classID string, kind models.SchemeKind) ([]models.StoredScheme, error) {
	doc, ok := m.docs[schemeMockKey(classID, kind)]
	if !ok {
		return nil, nil
	}
	return []models.StoredScheme{doc}, nil
}

func newGradingRouter(schemes *schemeRepoMock, records *recordRepoMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	grading := service.NewGradingService(schemes, records, nil, config.GradingConfig{}, zap.NewNop())
	exports := service.NewExportService(records, grading, zap.NewNop())
	gradeHandler := NewGradeHandler(grading, exports)
	schemeHandler := NewSchemeHandler(grading)

	r := gin.New()
	r.PUT("/classes/:classId/grading/documents/:docKind", schemeHandler.Save)
	r.GET("/classes/:classId/grading/documents/:docKind/versions", schemeHandler.Versions)
	r.GET("/classes/:classId/grading/scheme", schemeHandler.Scheme)
	r.GET("/classes/:classId/grading/boundaries", schemeHandler.Boundaries)
	r.POST("/classes/:classId/grades/preview", gradeHandler.Preview)
	r.GET("/classes/:classId/submissions/:id/grade", gradeHandler.SubmissionGrade)
	r.GET("/classes/:classId/grade-sheet", gradeHandler.GradeSheet)
	return r
}

func TestSchemeHandlerSaveThenNormalizedRead(t *testing.T) {
	schemes := &schemeRepoMock{}
	router := newGradingRouter(schemes, &recordRepoMock{})

	legacy := []byte(`{"items":[{"id":"thesis","title":"Thesis","maxPoints":8,"criteria":["Clear argument"]}]}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/classes/class-1/grading/documents/mark-scheme", bytes.NewReader(legacy))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/classes/class-1/grading/scheme", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.RubricScheme `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Criteria, 1)
	require.Len(t, envelope.Data.Criteria[0].Levels, 4)
	require.Equal(t, "Excellent", envelope.Data.Criteria[0].Levels[0].Name)
	require.Equal(t, "Clear argument", envelope.Data.Criteria[0].Levels[0].Description)
}

func TestSchemeHandlerRejectsUnknownDocKind(t *testing.T) {
	router := newGradingRouter(&schemeRepoMock{}, &recordRepoMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/classes/class-1/grading/documents/curve", bytes.NewReader([]byte(`{}`)))
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGradeHandlerPreview(t *testing.T) {
	schemes := &schemeRepoMock{docs: map[string]models.StoredScheme{
		schemeMockKey("class-1", models.SchemeKindMarkScheme): {
			Body: json.RawMessage(`{"criteria":[{"id":"c1","title":"Clarity","levels":[{"id":"l1","name":"Full","points":10}]}]}`),
		},
		schemeMockKey("class-1", models.SchemeKindBoundaries): {
			Body: json.RawMessage(`[{"grade":"A","minPercentage":90,"maxPercentage":100}]`),
		},
	}}
	router := newGradingRouter(schemes, &recordRepoMock{})

	body := []byte(`{"selections":{"c1":"l1"}}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/classes/class-1/grades/preview", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.GradeSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 10.0, envelope.Data.TotalScore)
	require.Equal(t, "A", envelope.Data.Letter)
}

func TestGradeHandlerSubmissionGrade(t *testing.T) {
	schemes := &schemeRepoMock{docs: map[string]models.StoredScheme{
		schemeMockKey("class-1", models.SchemeKindMarkScheme): {
			Body: json.RawMessage(`{"criteria":[{"id":"c1","title":"Clarity","levels":[{"id":"l1","name":"Full","points":5}]}]}`),
		},
	}}
	records := &recordRepoMock{items: map[string]models.StoredRecord{
		"sub-1": {
			ID: "sub-1", ClassID: "class-1", Kind: "submission",
			Fields: []byte(`{"grade":{"selections":{"c1":"l1"},"overrides":{"c1":3.5}}}`),
		},
	}}
	router := newGradingRouter(schemes, records)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/classes/class-1/submissions/sub-1/grade", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.GradeSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, 3.5, envelope.Data.TotalScore, "override wins over selection")
}

func TestGradeHandlerGradeSheetCSV(t *testing.T) {
	schemes := &schemeRepoMock{docs: map[string]models.StoredScheme{
		schemeMockKey("class-1", models.SchemeKindMarkScheme): {
			Body: json.RawMessage(`{"criteria":[{"id":"c1","title":"Clarity","levels":[{"id":"l1","name":"Full","points":5}]}]}`),
		},
	}}
	records := &recordRepoMock{items: map[string]models.StoredRecord{
		"sub-1": {
			ID: "sub-1", ClassID: "class-1", Kind: "submission",
			Fields: []byte(`{"student_name":"Ada","grade":{"selections":{"c1":"l1"}}}`),
		},
	}}
	router := newGradingRouter(schemes, records)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/classes/class-1/grade-sheet?format=csv", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "Ada")
}

func TestGradeHandlerGradeSheetDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	grading := service.NewGradingService(&schemeRepoMock{}, &recordRepoMock{}, nil, config.GradingConfig{}, zap.NewNop())
	h := NewGradeHandler(grading, nil)

	r := gin.New()
	r.GET("/classes/:classId/grade-sheet", h.GradeSheet)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/classes/class-1/grade-sheet", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
