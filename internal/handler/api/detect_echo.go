package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"FinScan/internal/domain/models"
	xhttp "FinScan/pkg/http"
	xlogger "FinScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

const uploadPreviewRows = 500

// PipelineRunner runs the detection pipeline for one file.
type PipelineRunner interface {
	Run(ctx context.Context, path string) (*models.Result, error)
}

// Dirs locates uploaded inputs and written artifacts.
type Dirs struct {
	Uploads    string
	Reports    string
	Plots      string
	SampleFile string
}

// DetectEchoHandler exposes upload, results and artifact endpoints.
type DetectEchoHandler struct {
	logger   *xlogger.Logger
	pipeline PipelineRunner
	dirs     Dirs
	upload   []echo.MiddlewareFunc
}

func NewDetectEchoHandler(logger *xlogger.Logger, pipeline PipelineRunner, dirs Dirs, uploadMiddleware ...echo.MiddlewareFunc) *DetectEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DetectEchoHandler{logger: logger, pipeline: pipeline, dirs: dirs, upload: uploadMiddleware}
}

func (h *DetectEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/uploads", h.Upload, h.upload...)
	g.GET("/results/:filename", h.Results)
	g.GET("/plots/:filename", h.Plot)
	g.GET("/reports/:filename", h.Report)
	g.GET("/sample", h.Sample)
}

// Upload stores a multipart "file" in the upload directory and runs the
// pipeline on it.
func (h *DetectEchoHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("multipart field 'file' is required").WithError(err))
	}
	name := filepath.Base(fh.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".csv") || name != fh.Filename {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("only .csv files are accepted").WithParam("filename", fh.Filename))
	}

	path, err := h.save(fh, name)
	if err != nil {
		h.logger.Error("upload save failed", xlogger.String("filename", name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not store upload"))
	}
	h.logger.Info("upload stored", xlogger.String("filename", name), xlogger.Int64("bytes", fh.Size))

	res, err := h.pipeline.Run(c.Request().Context(), path)
	if err != nil {
		return h.runError(c, name, err)
	}
	return xhttp.CreatedResponse(c, view(res, uploadPreviewRows))
}

// Results runs the pipeline for a previously uploaded file. Unchanged
// inputs are served from the label cache when one is configured.
func (h *DetectEchoHandler) Results(c echo.Context) error {
	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	path, ok := h.resolve(h.dirs.Uploads, req.Filename)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no upload named %s", req.Filename).WithParam("filename", req.Filename))
	}

	res, err := h.pipeline.Run(c.Request().Context(), path)
	if err != nil {
		return h.runError(c, req.Filename, err)
	}
	return xhttp.SuccessResponse(c, view(res, req.Rows))
}

func (h *DetectEchoHandler) Plot(c echo.Context) error {
	return h.serveArtifact(c, h.dirs.Plots)
}

func (h *DetectEchoHandler) Report(c echo.Context) error {
	return h.serveArtifact(c, h.dirs.Reports)
}

func (h *DetectEchoHandler) Sample(c echo.Context) error {
	if h.dirs.SampleFile == "" {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no sample file configured"))
	}
	if _, err := os.Stat(h.dirs.SampleFile); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("sample file not found"))
	}
	return c.Attachment(h.dirs.SampleFile, filepath.Base(h.dirs.SampleFile))
}

func (h *DetectEchoHandler) serveArtifact(c echo.Context, dir string) error {
	req := &models.ArtifactRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	path, ok := h.resolve(dir, req.Filename)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("%s not found", req.Filename).WithParam("filename", req.Filename))
	}
	return c.File(path)
}

// resolve maps a bare file name into dir. Names with path elements and
// missing files are rejected.
func (h *DetectEchoHandler) resolve(dir, name string) (string, bool) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", false
	}
	path := filepath.Join(dir, name)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", false
	}
	return path, true
}

func (h *DetectEchoHandler) save(fh *multipart.FileHeader, name string) (string, error) {
	if err := os.MkdirAll(h.dirs.Uploads, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path := filepath.Join(h.dirs.Uploads, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func (h *DetectEchoHandler) runError(c echo.Context, name string, err error) error {
	if errors.Is(err, models.ErrLoad) {
		h.logger.Warn("input rejected", xlogger.String("filename", name), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("cannot read %s: %v", name, err).WithParam("filename", name))
	}
	h.logger.Error("pipeline failed", xlogger.String("filename", name), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("pipeline failed").WithError(err))
}

func view(res *models.Result, rows int) models.ResultsView {
	v := models.ResultsView{Result: *res, Rows: []map[string]string{}}
	if res.Table == nil {
		return v
	}
	v.Columns = res.Table.ColumnNames()
	n := res.Table.Len()
	if rows < n {
		n = rows
		v.Truncated = true
	}
	for i := 0; i < n; i++ {
		v.Rows = append(v.Rows, res.Table.Record(i))
	}
	return v
}
