package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordAndServe(t *testing.T) {
	Init()
	RecordPage("success")
	RecordPage("error")
	RecordRun("site", 2*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "sitesnap_pages_total")
	require.Contains(t, body, "sitesnap_runs_total")
	require.Contains(t, body, "sitesnap_run_duration_seconds")
}
