package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
)

type stubScannerService struct {
	startErr error
	started  int
}

func (s *stubScannerService) Start(ctx context.Context) error {
	s.started++
	return s.startErr
}

func (s *stubScannerService) Stop(ctx context.Context) error  { return nil }
func (s *stubScannerService) Reset(ctx context.Context) error { return nil }

func (s *stubScannerService) Status(ctx context.Context) (*dto.ScanProgress, error) {
	return &dto.ScanProgress{}, nil
}

func (s *stubScannerService) Shutdown(ctx context.Context) {}

func newScannerTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/scanner/start", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func scannerTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("error", "console")
	require.NoError(t, err)
	return l
}

func TestStart_FreshClaimAccepted(t *testing.T) {
	c, rec := newScannerTestContext(t)
	h := NewScannerHandler(&stubScannerService{}, scannerTestLogger(t))

	require.NoError(t, h.Start(c))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), "started")
}

func TestStart_AlreadyRunningIsSuccessfulNoOp(t *testing.T) {
	c, rec := newScannerTestContext(t)
	h := NewScannerHandler(&stubScannerService{startErr: apperrors.ErrScanAlreadyRunning}, scannerTestLogger(t))

	require.NoError(t, h.Start(c))
	assert.Equal(t, http.StatusOK, rec.Code, "a live loop satisfies a start request")
	assert.Contains(t, rec.Body.String(), "already_running")
}
