package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cadence "github.com/cadence-rt/cadence"
	"github.com/cadence-rt/cadence/internal/infra/observability"
)

// fakeStats serves canned snapshots.
type fakeStats struct{}

func (fakeStats) FrameStatistics(id cadence.FrameID) cadence.FrameStatistics {
	return cadence.FrameStatistics{
		FrameID:                    id,
		SatisfactionRatioSpecified: 0.75,
	}
}

func (fakeStats) ExecFrameStatistics(id cadence.FrameID) cadence.ExecFrameStatistics {
	return cadence.ExecFrameStatistics{ExecFrameID: id}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := NewServer(fakeStats{})
	s.EnableMetrics(observability.New().Registry())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestFrameStatisticsJSON(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/frames/5/statistics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats cadence.FrameStatistics
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.FrameID != 5 {
		t.Errorf("FrameID = %d, want 5", stats.FrameID)
	}
	if stats.SatisfactionRatioSpecified != 0.75 {
		t.Errorf("ratio = %v, want 0.75", stats.SatisfactionRatioSpecified)
	}
}

func TestFrameStatisticsText(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/frames/5/statistics.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "$$ Frame #5 : Statistics") {
		t.Errorf("text report = %q, want the $$ exit format", body)
	}
}

func TestInvalidFrameID(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/v1/frames/abc/statistics", "/v1/frames/-1/statistics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
