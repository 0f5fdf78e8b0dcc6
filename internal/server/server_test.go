package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/explain"
	"github.com/dshills/juris/internal/prompts"
	"github.com/dshills/juris/internal/providers"
	"github.com/dshills/juris/internal/review"
	"github.com/dshills/juris/internal/store"
)

type fakeAnalyzer struct {
	gotType     prompts.ContractType
	gotContract review.Contract
	err         error
	panics      bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, c review.Contract, ct prompts.ContractType) (*review.Result, error) {
	if f.panics {
		panic("boom")
	}
	f.gotType, f.gotContract = ct, c
	if f.err != nil {
		return nil, f.err
	}
	findings := []review.RiskyClause{{Key: c.Clauses[0].Key, Content: c.Clauses[0].Content, RiskLevel: review.RiskHigh, Title: "Risk"}}
	return &review.Result{
		ID:            "rev-1",
		ContractID:    c.ID,
		ContractTitle: c.Title,
		ContractType:  ct,
		Pages:         c.Pages,
		Findings:      findings,
		Checklist:     "- Parties",
		Summary:       review.ComputeSummary(findings),
		Analytics:     review.Analytics{TotalClauses: len(c.Clauses), RiskyClauses: 1, TotalBatches: 1, SuccessRate: 100},
		CreatedAt:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

type fakeOpener struct {
	body string
	err  error
}

func (f *fakeOpener) OpenStream(context.Context, string, string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

type fixture struct {
	srv      *Server
	analyzer *fakeAnalyzer
	opener   *fakeOpener
	store    *store.Store
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	f := &fixture{analyzer: &fakeAnalyzer{}, opener: &fakeOpener{}}
	opts := Options{
		Analyzer:  f.analyzer,
		Explainer: explain.New(f.opener, nil, zap.NewNop()),
		Logger:    zap.NewNop(),
	}
	if withStore {
		st, err := store.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		f.store = st
		opts.Store = st
	}
	f.srv = New(opts)
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestCreateReview_SavesAndFetches(t *testing.T) {
	f := newFixture(t, true)
	body := `{"contract_type":"NDA","contract":{"id":"c-1","title":"Mutual NDA","pages":2,
		"clauses":[{"key":"clause-1","content":"Keep it secret."}]}}`

	w := f.do(http.MethodPost, "/v1/reviews", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, prompts.NonDisclosureAgreement, f.analyzer.gotType)

	var result review.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "rev-1", result.ID)

	w = f.do(http.MethodGet, "/v1/reviews/rev-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stored review.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stored))
	assert.Equal(t, "Mutual NDA", stored.ContractTitle)

	w = f.do(http.MethodGet, "/v1/reviews?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.ReviewSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "rev-1", list[0].ID)

	w = f.do(http.MethodGet, "/v1/analytics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var totals store.Totals
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &totals))
	assert.Equal(t, 1, totals.Contracts)
	assert.Equal(t, 2, totals.Pages)
	assert.Equal(t, 1, totals.ByType[string(prompts.NonDisclosureAgreement)])
}

func TestCreateReview_NoSave(t *testing.T) {
	f := newFixture(t, true)
	body := `{"save":false,"contract":{"clauses":[{"key":"k1","content":"Text."}]}}`

	w := f.do(http.MethodPost, "/v1/reviews", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, prompts.Other, f.analyzer.gotType)

	w = f.do(http.MethodGet, "/v1/reviews/rev-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateReview_FromHTML(t *testing.T) {
	f := newFixture(t, false)
	body := `{"contract_type":"msa","html":"<title>MSA</title><ol><li>Fees are fixed.</li><li>Term is one year.</li></ol>"}`

	w := f.do(http.MethodPost, "/v1/reviews", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "MSA", f.analyzer.gotContract.Title)
	require.Len(t, f.analyzer.gotContract.Clauses, 2)
	assert.Equal(t, "clause-2", f.analyzer.gotContract.Clauses[1].Key)
}

func TestCreateReview_BadRequests(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/v1/reviews", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/v1/reviews", `{"contract":{"clauses":[]}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.analyzer.err = eris.Wrap(review.ErrDuplicateClauseKey, `clause key "k1"`)
	w = f.do(http.MethodPost, "/v1/reviews", `{"contract":{"clauses":[{"key":"k1","content":"a"},{"key":"k1","content":"b"}]}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.analyzer.err = eris.New("unexpected")
	w = f.do(http.MethodPost, "/v1/reviews", `{"contract":{"clauses":[{"key":"k1","content":"a"}]}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStoreEndpoints_WithoutStore(t *testing.T) {
	f := newFixture(t, false)
	for _, path := range []string{"/v1/reviews", "/v1/reviews/x", "/v1/analytics"} {
		w := f.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestListReviews_BadLimit(t *testing.T) {
	f := newFixture(t, true)
	w := f.do(http.MethodGet, "/v1/reviews?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExplain_Streams(t *testing.T) {
	f := newFixture(t, false)
	f.opener.body = `data: {"choices":[{"delta":{"content":"This clause "}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":"limits liability."}}]}` + "\n" +
		"data: [DONE]\n"

	w := f.do(http.MethodPost, "/v1/explain", `{"clause":"Liability is capped.","contract_type":"sales_contract"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "This clause limits liability.", w.Body.String())
	assert.True(t, w.Flushed)
}

func TestExplain_Errors(t *testing.T) {
	f := newFixture(t, false)

	w := f.do(http.MethodPost, "/v1/explain", `{"clause":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.opener.err = &providers.StatusError{Code: 429, Body: "slow down"}
	w = f.do(http.MethodPost, "/v1/explain", `{"clause":"Text."}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRecoverer(t *testing.T) {
	f := newFixture(t, false)
	f.analyzer.panics = true
	w := f.do(http.MethodPost, "/v1/reviews", `{"contract":{"clauses":[{"key":"k1","content":"a"}]}}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		method, path string
	}{
		{http.MethodDelete, "/v1/analytics"},
		{http.MethodPut, "/v1/reviews"},
		{http.MethodPost, "/v1/reviews/rev-1"},
		{http.MethodGet, "/v1/explain"},
		{http.MethodPost, "/health"},
	}
	for _, tt := range tests {
		w := f.do(tt.method, tt.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, "%s %s", tt.method, tt.path)
		assert.Contains(t, w.Body.String(), "method not allowed")
	}
}

func TestUnknownPath(t *testing.T) {
	f := newFixture(t, false)
	w := f.do(http.MethodGet, "/v2/reviews", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestListenAndServe_Shutdown(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
