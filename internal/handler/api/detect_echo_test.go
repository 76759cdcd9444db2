package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"FinScan/internal/domain/models"
	"FinScan/internal/services/analytics"
	"FinScan/internal/services/ingest"
	"FinScan/internal/services/report"
	"FinScan/internal/usecase"
	xhttp "FinScan/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const threeRows = "Close,Volume\n10,100\n1000,100\n11,105\n"

type env struct {
	e    *echo.Echo
	dirs Dirs
}

func newEnv(t *testing.T) env {
	root := t.TempDir()
	dirs := Dirs{
		Uploads: filepath.Join(root, "uploads"),
		Reports: filepath.Join(root, "reports"),
		Plots:   filepath.Join(root, "plots"),
	}
	p := usecase.NewPipeline(
		usecase.PipelineConfig{Contamination: 0.33, Seed: 42},
		ingest.NewLoader(),
		analytics.NewZScore(),
		report.NewWriter(dirs.Reports),
		report.NewRenderer(dirs.Plots),
	)
	e := echo.New()
	NewDetectEchoHandler(nil, p, dirs).RegisterRoutes(e)
	return env{e: e, dirs: dirs}
}

func (v env) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, name, body string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

type resultsBody struct {
	Status int                `json:"status"`
	Data   models.ResultsView `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) resultsBody {
	t.Helper()
	var out resultsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUploadRunsPipeline(t *testing.T) {
	v := newEnv(t)

	rec := v.do(uploadRequest(t, "example.csv", threeRows))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "example.csv", body.Data.Source)
	assert.Equal(t, 3, body.Data.Summary.TotalRows)
	assert.Equal(t, 1, body.Data.Summary.Anomalies)
	assert.Equal(t, []string{"Close", "Volume", models.ColumnAnomaly}, body.Data.Columns)
	require.Len(t, body.Data.Rows, 3)
	assert.Equal(t, "1", body.Data.Rows[1][models.ColumnAnomaly])
	assert.False(t, body.Data.Truncated)

	_, err := os.Stat(filepath.Join(v.dirs.Uploads, "example.csv"))
	assert.NoError(t, err)
}

func TestUploadRejectsNonCSV(t *testing.T) {
	v := newEnv(t)
	rec := v.do(uploadRequest(t, "example.txt", threeRows))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMapsLoadErrorTo400(t *testing.T) {
	v := newEnv(t)
	rec := v.do(uploadRequest(t, "dup.csv", "a,a\n1,2\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadMissingFile(t *testing.T) {
	v := newEnv(t)
	rec := v.do(httptest.NewRequest(http.MethodPost, "/api/uploads", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultsTruncatesRows(t *testing.T) {
	v := newEnv(t)
	require.Equal(t, http.StatusCreated, v.do(uploadRequest(t, "example.csv", threeRows)).Code)

	rec := v.do(httptest.NewRequest(http.MethodGet, "/api/results/example.csv?rows=2", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Len(t, body.Data.Rows, 2)
	assert.True(t, body.Data.Truncated)
}

func TestResultsUnknownFile(t *testing.T) {
	v := newEnv(t)
	rec := v.do(httptest.NewRequest(http.MethodGet, "/api/results/missing.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = v.do(httptest.NewRequest(http.MethodGet, "/api/results/notes.txt", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArtifacts(t *testing.T) {
	v := newEnv(t)
	require.Equal(t, http.StatusCreated, v.do(uploadRequest(t, "example.csv", threeRows)).Code)

	rec := v.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+report.AnomalyReportPrefix+"example.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Close,Volume,Anomaly\n1000,100,1\n", rec.Body.String())

	rec = v.do(httptest.NewRequest(http.MethodGet, "/api/reports/"+report.MetricsFile, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Total rows: 3")

	// no Date column, so no chart
	rec = v.do(httptest.NewRequest(http.MethodGet, "/api/plots/"+report.ChartName("example.csv"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = v.do(httptest.NewRequest(http.MethodGet, "/api/reports/..", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSample(t *testing.T) {
	v := newEnv(t)
	rec := v.do(httptest.NewRequest(http.MethodGet, "/api/sample", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sample := filepath.Join(t.TempDir(), "sample_stock.csv")
	require.NoError(t, os.WriteFile(sample, []byte(threeRows), 0o644))
	h := NewDetectEchoHandler(nil, nil, Dirs{SampleFile: sample})
	e := echo.New()
	h.RegisterRoutes(e)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sample", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, threeRows, rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "sample_stock.csv")
}

func TestUploadMiddlewareApplied(t *testing.T) {
	v := newEnv(t)
	blocked := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("slow down"))
		}
	}
	e := echo.New()
	NewDetectEchoHandler(nil, nil, v.dirs, blocked).RegisterRoutes(e)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, uploadRequest(t, "example.csv", threeRows))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
