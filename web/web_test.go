package web_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/metergate/domain/stats"
	"github.com/artpar/metergate/web"
)

// fakeMeter records calls and returns canned data.
type fakeMeter struct {
	recorded []stats.Event
	resets   int
	cleanups int
	forced   bool
}

func (f *fakeMeter) RecordUsage(caller, model string, tokens int64) {
	f.recorded = append(f.recorded, stats.Event{Caller: caller, Model: model, Tokens: tokens})
}

func (f *fakeMeter) UsageByCaller(caller, model string) int64 { return 0 }

func (f *fakeMeter) CallsInLast(d time.Duration) int64 { return 0 }

func (f *fakeMeter) TimeSeries(windowMinutes int) (calls, tokens []stats.TimePoint) {
	for i := 0; i <= windowMinutes; i++ {
		calls = append(calls, stats.TimePoint{Value: 1})
		tokens = append(tokens, stats.TimePoint{Value: 10})
	}
	return calls, tokens
}

func (f *fakeMeter) CallerStats(callers []string) []stats.CallerStats {
	out := make([]stats.CallerStats, 0, len(callers))
	for _, c := range callers {
		out = append(out, stats.CallerStats{Caller: c, Calls: 3, TotalTokens: 150})
	}
	return out
}

func (f *fakeMeter) DailySummaries(days int) []stats.DailySummary {
	return []stats.DailySummary{{Date: "2024-06-15", Calls: 7, Tokens: 700}}
}

func (f *fakeMeter) RecentCalls() []stats.CallRecord { return nil }

func (f *fakeMeter) Reset() { f.resets++ }

func (f *fakeMeter) Cleanup(force bool) {
	f.cleanups++
	f.forced = force
}

func newTestServer(t *testing.T, m *fakeMeter, key string) *httptest.Server {
	t.Helper()
	h := web.NewHandler(web.Deps{
		Meter:   m,
		Logger:  zerolog.Nop(),
		AuthKey: func() string { return key },
		Models: func() ([]string, []string) {
			return []string{"gemini-2.5-pro"}, []string{"gemini-2.5-flash-lite"}
		},
	})
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, bearer, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestRecordUsage(t *testing.T) {
	m := &fakeMeter{}
	srv := newTestServer(t, m, "secret")

	body := `{"api_key":"abc123","model":"gemini-2.5-flash","tokens":120}`
	resp, got := doJSON(t, http.MethodPost, srv.URL+"/v1/usage", "secret", body)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if got["status"] != "accepted" {
		t.Errorf("status field = %v, want accepted", got["status"])
	}
	if len(m.recorded) != 1 {
		t.Fatalf("recorded %d events, want 1", len(m.recorded))
	}
	ev := m.recorded[0]
	if ev.Caller != "abc123" || ev.Model != "gemini-2.5-flash" || ev.Tokens != 120 {
		t.Errorf("recorded event = %+v", ev)
	}
}

func TestRecordUsage_DefaultsToPresentedKey(t *testing.T) {
	m := &fakeMeter{}
	srv := newTestServer(t, m, "secret")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/usage", "secret",
		`{"model":"gemini-2.5-flash","tokens":5}`)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if len(m.recorded) != 1 || m.recorded[0].Caller != "secret" {
		t.Errorf("caller = %v, want presented key", m.recorded)
	}
}

func TestRecordUsage_MissingModel(t *testing.T) {
	m := &fakeMeter{}
	srv := newTestServer(t, m, "secret")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/usage", "secret",
		`{"api_key":"abc","tokens":5}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if len(m.recorded) != 0 {
		t.Errorf("recorded %d events, want 0", len(m.recorded))
	}
}

func TestAuth_RejectsBadKey(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/recent", "wrong", "")

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	errObj, ok := got["error"].(map[string]interface{})
	if !ok || errObj["code"] != "invalid_key" {
		t.Errorf("error = %v, want invalid_key", got["error"])
	}
}

func TestAuth_RejectsMissingKey(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/recent", "", "")

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuth_QueryKeyAccepted(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/recent?key=secret", "", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuth_GoogHeaderAccepted(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/stats/recent", nil)
	req.Header.Set("x-goog-api-key", "secret")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuth_DisabledWhenNoKeyConfigured(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/recent", "", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 when auth disabled", resp.StatusCode)
	}
}

func TestKeyStats(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/keys?keys=abc123,def456", "secret", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	keys, ok := got["keys"].([]interface{})
	if !ok || len(keys) != 2 {
		t.Fatalf("keys = %v, want 2 entries", got["keys"])
	}
	first := keys[0].(map[string]interface{})
	if first["api_key"] != "abc123" {
		t.Errorf("keys[0].api_key = %v, want abc123", first["api_key"])
	}
}

func TestKeyStats_MissingParam(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/keys", "secret", "")

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSeries_WindowDefaults(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/series", "secret", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	calls := got["calls"].([]interface{})
	if len(calls) != 61 {
		t.Errorf("len(calls) = %d, want 61 for default 60m window", len(calls))
	}
}

func TestSeries_WindowCapped(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	_, got := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/series?minutes=99999", "secret", "")

	calls := got["calls"].([]interface{})
	if len(calls) != 24*60+1 {
		t.Errorf("len(calls) = %d, want capped 24h window", len(calls))
	}
}

func TestDaily(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/daily", "secret", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	days := got["days"].([]interface{})
	if len(days) != 1 {
		t.Fatalf("days = %v, want 1 entry", got["days"])
	}
	day := days[0].(map[string]interface{})
	if day["date"] != "2024-06-15" {
		t.Errorf("days[0].date = %v, want 2024-06-15", day["date"])
	}
}

func TestRecent_EmptyIsArray(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/v1/stats/recent", "secret", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if _, ok := got["calls"].([]interface{}); !ok {
		t.Errorf("calls = %v, want JSON array even when empty", got["calls"])
	}
}

func TestReset(t *testing.T) {
	m := &fakeMeter{}
	srv := newTestServer(t, m, "secret")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/stats/reset", "secret", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if m.resets != 1 {
		t.Errorf("resets = %d, want 1", m.resets)
	}
}

func TestCleanup_Forces(t *testing.T) {
	m := &fakeMeter{}
	srv := newTestServer(t, m, "secret")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/stats/cleanup", "secret", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if m.cleanups != 1 || !m.forced {
		t.Errorf("cleanups = %d forced = %v, want forced run", m.cleanups, m.forced)
	}
}

func TestModels(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/v1/models", "secret", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got["object"] != "list" {
		t.Errorf("object = %v, want list", got["object"])
	}
	data := got["data"].([]interface{})
	// one standard + one express + one encrypt variant of the standard
	if len(data) != 3 {
		t.Fatalf("len(data) = %d, want 3", len(data))
	}
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(t, &fakeMeter{}, "secret")

	resp, got := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got["status"] != "ok" {
		t.Errorf("status = %v, want ok", got["status"])
	}
}
