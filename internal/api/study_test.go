package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/memelab/internal/domain"
)

func bankOf(n int) *fakeBank {
	b := &fakeBank{}
	for i := 0; i < n; i++ {
		b.trials = append(b.trials, domain.Trial{
			ID:     domain.TrialID(string(rune('a' + i))),
			ImgURL: "/static/images/" + string(rune('a'+i)) + ".jpg",
		})
	}
	return b
}

func TestTrialsEchoesParticipant(t *testing.T) {
	t.Parallel()
	bank := bankOf(3)
	router := newTestRouter(t, bank, newFakeRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/trials?workerId=W1&assignmentId=A1&condition=withAI&n=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body TrialsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.WorkerID != "W1" || body.AssignmentID != "A1" || body.Condition != domain.ConditionWithAI {
		t.Errorf("body = %+v", body)
	}
	if bank.asked != 5 {
		t.Errorf("asked for %d trials, want 5", bank.asked)
	}
	if body.N != 3 || len(body.Trials) != 3 {
		t.Errorf("n = %d, trials = %d; want 3 (bank smaller than n)", body.N, len(body.Trials))
	}
}

func TestTrialsDefaultCount(t *testing.T) {
	t.Parallel()
	bank := bankOf(20)
	router := newTestRouter(t, bank, newFakeRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trials", nil))

	var body TrialsResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.N != 12 || body.WorkerID != domain.DefaultWorkerID || body.Condition != domain.ConditionBaseline {
		t.Errorf("body = %+v", body)
	}
}

func postSubmit(t *testing.T, router http.Handler, body string, header map[string]string) (*httptest.ResponseRecorder, SubmitResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp SubmitResponse
	_ = json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp)
	return rec, resp
}

func TestSubmitStoresAndIssuesCode(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	router := newTestRouter(t, bankOf(1), repo)

	rec, resp := postSubmit(t, router, `{
		"workerId":"W1","assignmentId":"A1","condition":"withAI",
		"startedAt":1000,"endedAt":61000,"exit_early":false,"uniqname":"jdoe",
		"clientMeta":{"userAgent":"test","lang":"en-us","viewport":{"w":800,"h":600}},
		"trials":[{"trial_id":"a","order":1,"rt_ms":1200,"skipped":false,"load_error":false,"timestamp":"x"}]
	}`, nil)

	if rec.Code != http.StatusOK || !resp.OK {
		t.Fatalf("status = %d, resp = %+v", rec.Code, resp)
	}
	if resp.SurveyCode != "19FEA278" {
		t.Errorf("survey code = %q, want 19FEA278", resp.SurveyCode)
	}

	stored := repo.recs[0]
	if stored.DurationMs == nil || *stored.DurationMs != 60_000 {
		t.Errorf("duration = %v, want 60000", stored.DurationMs)
	}
	if got := *stored.Submission.ClientMeta.Lang; got != "en-US" {
		t.Errorf("lang = %q, want en-US", got)
	}
}

func TestSubmitPrefersTotalMs(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	router := newTestRouter(t, bankOf(1), repo)

	postSubmit(t, router, `{"workerId":"W1","startedAt":1000,"endedAt":61000,"total_ms":59000,"trials":[]}`, nil)

	if d := repo.recs[0].DurationMs; d == nil || *d != 59_000 {
		t.Errorf("duration = %v, want 59000", d)
	}
}

func TestSubmitToleratesMalformedBody(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	router := newTestRouter(t, bankOf(1), repo)

	rec, resp := postSubmit(t, router, `{not json`, nil)

	if rec.Code != http.StatusOK || resp.SurveyCode == "" {
		t.Fatalf("status = %d, resp = %+v", rec.Code, resp)
	}
	if len(repo.recs) != 1 || repo.recs[0].Submission.WorkerID != "local" {
		t.Errorf("stored = %+v", repo.recs)
	}
}

func TestSubmitRejectsOversizeBody(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	router := newTestRouter(t, bankOf(1), repo)

	body := `{"workerId":"W1","uniqname":"` + strings.Repeat("x", maxSubmissionBytes) + `"}`
	rec, resp := postSubmit(t, router, body, nil)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	if resp.SurveyCode != "" || len(repo.recs) != 0 {
		t.Errorf("oversize body was stored: resp = %+v, stored = %d", resp, len(repo.recs))
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	router := newTestRouter(t, bankOf(1), repo)

	_, first := postSubmit(t, router, `{"workerId":"W1","trials":[]}`, map[string]string{"Idempotency-Key": "sess-1"})
	_, second := postSubmit(t, router, `{"workerId":"W2","trials":[]}`, map[string]string{"Idempotency-Key": "sess-1"})

	if first.SurveyCode != second.SurveyCode {
		t.Errorf("codes differ: %q vs %q", first.SurveyCode, second.SurveyCode)
	}
	if len(repo.recs) != 1 {
		t.Errorf("stored %d records, want 1", len(repo.recs))
	}
}

func TestSubmitStoreFailure(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	repo.saveErr = errors.New("disk full")
	router := newTestRouter(t, bankOf(1), repo)

	rec, _ := postSubmit(t, router, `{"workerId":"W1"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestDownloadData(t *testing.T) {
	t.Parallel()
	repo := newFakeRepo()
	router := newTestRouter(t, bankOf(1), repo)
	postSubmit(t, router, `{"workerId":"W1","assignmentId":"A1","startedAt":1000,"endedAt":2000,"uniqname":"jdoe","trials":[]}`, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download-data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/zip" {
		t.Errorf("content type = %q", ct)
	}

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		_ = rc.Close()
		files[f.Name] = string(b)
	}

	for _, name := range []string{"submissions.jsonl", "submissions.csv", "codes.csv"} {
		if _, ok := files[name]; !ok {
			t.Errorf("archive missing %s", name)
		}
	}
	if !strings.Contains(files["submissions.jsonl"], `"survey_code":"19FEA278"`) ||
		!strings.Contains(files["submissions.jsonl"], `"duration_ms":1000`) {
		t.Errorf("jsonl = %s", files["submissions.jsonl"])
	}
	lines := strings.Split(strings.TrimSpace(files["codes.csv"]), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "19FEA278,jdoe,W1,A1,1000") {
		t.Errorf("codes.csv = %q", files["codes.csv"])
	}
	if !strings.HasPrefix(files["submissions.csv"], "timestamp,workerId,assignmentId,condition,startedAt") {
		t.Errorf("submissions.csv header = %q", files["submissions.csv"])
	}
}

func TestGetConfig(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t, bankOf(1), newFakeRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	var body map[string]interface{}
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["default_trials"] != float64(12) || body["survey_url"] != "https://forms.example/viewform" {
		t.Errorf("config = %v", body)
	}
}
