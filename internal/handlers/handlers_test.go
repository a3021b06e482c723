package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/face-identify/internal/faceapi"
	"github.com/example/face-identify/internal/logging"
	"github.com/example/face-identify/internal/pipeline"
	"github.com/example/face-identify/internal/repository"
	"github.com/example/face-identify/internal/storage"
	"github.com/example/face-identify/internal/usecase"
)

const testMaxUpload = 6 << 20

type stubService struct {
	report  *pipeline.Report
	err     error
	calls   int
	log     *repository.RecognitionLog
	logErr  error
	summary *usecase.MetricsSummary
	sumErr  error
}

func (s *stubService) IdentifyImage(ctx context.Context, image []byte) (string, *pipeline.Report, error) {
	s.calls++
	return "req-123", s.report, s.err
}

func (s *stubService) GetResult(ctx context.Context, requestID string) (*repository.RecognitionLog, error) {
	return s.log, s.logErr
}

func (s *stubService) GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error) {
	return s.summary, s.sumErr
}

func newTestRouter(t *testing.T, svc Service, maxUpload int64) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	router := gin.New()
	RegisterRoutes(router, svc, storage.NewDiskStore(dir), maxUpload)
	return router, dir
}

func TestGetImgFallbackForOtherMethods(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, testMaxUpload)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/getimg", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", method, resp.Code)
		}
		if resp.Body.String() != "Don't know what to give you" {
			t.Fatalf("%s: unexpected body %q", method, resp.Body.String())
		}
	}
}

func TestGetImgRejectsMissingFile(t *testing.T) {
	svc := &stubService{}
	router, _ := newTestRouter(t, svc, testMaxUpload)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("other", "value"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/getimg", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"error"`)) {
		t.Fatalf("expected JSON error, got %s", resp.Body.String())
	}
	if svc.calls != 0 {
		t.Fatal("service must not be called without a file")
	}
}

func TestGetImgRejectsLargeUpload(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, 4<<10)

	body, contentType := buildMultipartBody(t, "image/png", bytes.Repeat([]byte("a"), 16<<10))
	req := httptest.NewRequest(http.MethodPost, "/getimg", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestGetImgRejectsUnsupportedContent(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, testMaxUpload)

	body, contentType := buildMultipartBody(t, "text/plain", bytes.Repeat([]byte("hello "), 512))
	req := httptest.NewRequest(http.MethodPost, "/getimg", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestGetImgReturnsMatches(t *testing.T) {
	externalID := "100007818076486"
	svc := &stubService{report: &pipeline.Report{Matches: []pipeline.Match{{
		PersonName:    "Kavya Ravi",
		FaceRectangle: faceapi.FaceRectangle{Left: 10, Top: 20, Width: 30, Height: 40},
		ExternalID:    &externalID,
	}}}}
	router, dir := newTestRouter(t, svc, testMaxUpload)

	payload := testPNG(t)
	body, contentType := buildMultipartBody(t, "image/png", payload)
	req := httptest.NewRequest(http.MethodPost, "/getimg", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get(RequestIDHeader) != "req-123" {
		t.Fatalf("missing request id header")
	}

	var matches []map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &matches); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(matches) != 1 || matches[0]["personName"] != "Kavya Ravi" || matches[0]["externalId"] != externalID {
		t.Fatalf("unexpected matches %v", matches)
	}
	rect, ok := matches[0]["faceRectangle"].(map[string]any)
	if !ok || rect["left"] != float64(10) || rect["height"] != float64(40) {
		t.Fatalf("unexpected rectangle %v", matches[0]["faceRectangle"])
	}

	saved, err := os.ReadFile(filepath.Join(dir, storage.UploadFileName))
	if err != nil {
		t.Fatalf("upload not persisted: %v", err)
	}
	if !bytes.Equal(saved, payload) {
		t.Fatal("persisted upload differs from request payload")
	}
}

func TestGetImgEmptyMatchesIsEmptyArray(t *testing.T) {
	svc := &stubService{report: &pipeline.Report{Matches: []pipeline.Match{}}}
	router, _ := newTestRouter(t, svc, testMaxUpload)

	body, contentType := buildMultipartBody(t, "image/png", testPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/getimg", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || resp.Body.String() != "[]" {
		t.Fatalf("expected 200 [], got %d %s", resp.Code, resp.Body.String())
	}
}

func TestGetImgMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "service error",
			err:    logging.NewOperationError("faceapi.detect", "req-123", &faceapi.ServiceError{StatusCode: 429, Code: "RateLimitExceeded", Message: "slow down"}),
			status: http.StatusBadGateway,
		},
		{
			name:   "timeout",
			err:    logging.NewOperationError("faceapi.identify", "req-123", fmt.Errorf("%w: deadline", faceapi.ErrTimeout)),
			status: http.StatusGatewayTimeout,
		},
		{
			name:   "unknown face",
			err:    pipeline.ErrUnknownFace,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, &stubService{err: tt.err}, testMaxUpload)

			body, contentType := buildMultipartBody(t, "image/png", testPNG(t))
			req := httptest.NewRequest(http.MethodPost, "/getimg", body)
			req.Header.Set("Content-Type", contentType)
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)

			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
			var payload map[string]any
			if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if _, ok := payload["error"]; !ok {
				t.Fatalf("expected error field, got %v", payload)
			}
			if tt.status == http.StatusBadGateway && (payload["status_code"] != float64(429) || payload["code"] != "RateLimitExceeded") {
				t.Fatalf("unexpected service error payload %v", payload)
			}
		})
	}
}

func TestWriteErrorUploadFailures(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{name: "missing file", err: storage.Missing(), status: http.StatusBadRequest, want: "upload read"},
		{name: "unreadable upload", err: &storage.UploadError{Op: "open", Err: os.ErrPermission}, status: http.StatusInternalServerError, want: "upload open"},
		{name: "write failure", err: &storage.UploadError{Op: "rename", Err: os.ErrExist}, status: http.StatusInternalServerError, want: "upload rename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(resp)
			writeError(c, tt.err)

			if resp.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, resp.Code)
			}
			var payload map[string]string
			if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if !strings.HasPrefix(payload["error"], tt.want) {
				t.Fatalf("expected error starting with %q, got %q", tt.want, payload["error"])
			}
		})
	}
}

func TestWriteErrorReportsFailedOperation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	resp := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(resp)
	writeError(c, logging.NewOperationError("pipeline.merge_rectangles", "req-1", pipeline.ErrUnknownFace))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload["operation"] != "pipeline.merge_rectangles" {
		t.Fatalf("unexpected operation %q", payload["operation"])
	}
}

func TestGetImgStorageFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// a regular file where the upload directory should be
	base := filepath.Join(t.TempDir(), "media")
	if err := os.WriteFile(base, []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	svc := &stubService{}
	router := gin.New()
	RegisterRoutes(router, svc, storage.NewDiskStore(base), testMaxUpload)

	body, contentType := buildMultipartBody(t, "image/png", testPNG(t))
	req := httptest.NewRequest(http.MethodPost, "/getimg", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 0 {
		t.Fatal("service must not run when the upload cannot be stored")
	}
}

func TestResults(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := &stubService{log: &repository.RecognitionLog{
		RequestID:    "req-1",
		GroupID:      "friends",
		FaceCount:    2,
		MatchedCount: 1,
		Result:       `[{"personName":"Kavya Ravi"}]`,
		CreatedAt:    created,
	}}
	router, _ := newTestRouter(t, svc, testMaxUpload)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/results/req-1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var payload struct {
		RequestID string            `json:"request_id"`
		Matches   []json.RawMessage `json:"matches"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if payload.RequestID != "req-1" || len(payload.Matches) != 1 {
		t.Fatalf("unexpected payload %s", resp.Body.String())
	}

	for _, err := range []error{repository.ErrNotFound, usecase.ErrHistoryDisabled} {
		router, _ := newTestRouter(t, &stubService{logErr: err}, testMaxUpload)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/results/missing", nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%v: expected 404, got %d", err, resp.Code)
		}
	}
}

func TestMetricsSummary(t *testing.T) {
	svc := &stubService{summary: &usecase.MetricsSummary{TotalRequests: 3, MatchRate: 0.25}}
	router, _ := newTestRouter(t, svc, testMaxUpload)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var summary usecase.MetricsSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if summary.TotalRequests != 3 || summary.MatchRate != 0.25 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, &stubService{}, testMaxUpload)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != `{"status":"ok"}` {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}
}

// testPNG returns a noisy 64x64 PNG, large enough to pass the size check.
func testPNG(t *testing.T) []byte {
	t.Helper()

	rng := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="upload"`, UploadField))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}
