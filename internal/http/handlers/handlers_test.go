package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"dreamina/internal/domain"
	"dreamina/internal/domain/jsoncfg"
	"dreamina/internal/dreamina"
	"dreamina/internal/http/handlers"
	"dreamina/internal/http/httpapi"
	"dreamina/internal/infra"
)

type stubGenerator struct {
	lastRequest *domain.GenerationRequest
	lastHandle  domain.JobHandle
	status      domain.JobStatus
	err         error
	history     *domain.CreditHistory
	receiveErr  error
}

func (s *stubGenerator) Generate(_ context.Context, _ *domain.Account, req *domain.GenerationRequest) (domain.JobStatus, error) {
	s.lastRequest = req
	return s.status, s.err
}

func (s *stubGenerator) PollOnce(_ context.Context, _ *domain.Account, handle domain.JobHandle) (domain.JobStatus, error) {
	s.lastHandle = handle
	return s.status, s.err
}

func (s *stubGenerator) GetCredit(context.Context, *domain.Account) *domain.CreditSnapshot {
	return &domain.CreditSnapshot{GiftCredit: 60, TotalCredit: 60}
}

func (s *stubGenerator) CreditHistory(context.Context, *domain.Account, int, string) (*domain.CreditHistory, error) {
	if s.history == nil {
		return &domain.CreditHistory{}, nil
	}
	return s.history, nil
}

func (s *stubGenerator) ReceiveDailyCredit(context.Context, *domain.Account) (int64, error) {
	if s.receiveErr != nil {
		return 0, s.receiveErr
	}
	return 118, nil
}

func (s *stubGenerator) Params() *jsoncfg.Params {
	p := &jsoncfg.Params{}
	p.Normalize()
	return p
}

func newTestServer(t *testing.T, gen *stubGenerator) *httptest.Server {
	t.Helper()
	router, err := dreamina.NewRouter([]jsoncfg.AccountConfig{
		{SessionID: "session-aaaa-1111", Description: "primary"},
		{SessionID: "session-bbbb-2222", Description: "backup"},
	})
	require.NoError(t, err)

	logger := infra.Logger(zerolog.New(io.Discard))
	app := handlers.NewApp(gen, router, &logger)
	srv := httptest.NewServer(httpapi.NewRouter(app))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	var body map[string]any
	code := getJSON(t, srv.URL+"/api/health", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
	require.EqualValues(t, 2, body["accounts"])
}

func TestAccountsListMasksSessions(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	var body struct {
		Items []map[string]any `json:"items"`
	}
	code := getJSON(t, srv.URL+"/api/accounts", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Items, 2)

	session := body.Items[0]["session"].(string)
	require.NotContains(t, session, "aaaa", "full session id must never leave the server")
	require.True(t, strings.HasPrefix(session, "sess"))
	require.Equal(t, true, body.Items[0]["active"])
	require.Equal(t, false, body.Items[1]["active"])
}

func TestAccountsSelect(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})

	var body map[string]any
	code := postJSON(t, srv.URL+"/api/accounts/1/select", nil, &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "backup", body["description"])

	code = postJSON(t, srv.URL+"/api/accounts/9/select", nil, &body)
	require.Equal(t, http.StatusNotFound, code)

	code = postJSON(t, srv.URL+"/api/accounts/x/select", nil, &body)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestGenerateTextEndpoint(t *testing.T) {
	gen := &stubGenerator{status: domain.JobStatus{
		State:     domain.JobSucceeded,
		ImageURLs: []string{"https://cdn/final.webp"},
	}}
	srv := newTestServer(t, gen)

	var body map[string]any
	code := postJSON(t, srv.URL+"/api/generate/t2i", map[string]any{
		"prompt": "a lighthouse",
		"model":  "3.0",
		"ratio":  "16:9",
	}, &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "succeeded", body["state"])
	require.NotNil(t, gen.lastRequest)
	require.Equal(t, domain.ModeText2Image, gen.lastRequest.Mode)
	require.EqualValues(t, domain.SeedAuto, gen.lastRequest.Seed, "omitted seed maps to auto")
}

func TestGenerateTextRequiresPrompt(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	var body map[string]any
	code := postJSON(t, srv.URL+"/api/generate/t2i", map[string]any{"model": "3.0"}, &body)
	require.Equal(t, http.StatusBadRequest, code)
}

func TestGenerateTextErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unknown model", domain.ErrModelNotConfigured, http.StatusBadRequest},
		{"timeout", domain.ErrTimedOut, http.StatusGatewayTimeout},
		{"upload exhausted", domain.ErrNoUploadSucceeded, http.StatusBadGateway},
		{"upstream rejection", &domain.ApplicationError{Code: "1015", Message: "login expired"}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, &stubGenerator{err: tc.err})
			var body map[string]any
			code := postJSON(t, srv.URL+"/api/generate/t2i", map[string]any{"prompt": "x"}, &body)
			require.Equal(t, tc.code, code)
		})
	}
}

func TestGenerateFromImagesEndpoint(t *testing.T) {
	gen := &stubGenerator{status: domain.JobStatus{State: domain.JobSucceeded, ImageURLs: []string{"https://cdn/out.webp"}}}
	srv := newTestServer(t, gen)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "add rain"))
	for _, name := range []string{"a.png", "b.png"} {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("png-bytes-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/generate/i2i", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, gen.lastRequest)
	require.Equal(t, domain.ModeImage2Image, gen.lastRequest.Mode)
	require.Len(t, gen.lastRequest.ReferenceImages, 2)
}

func TestGenerateFromImagesRequiresFiles(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "no images"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/generate/i2i", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobGet(t *testing.T) {
	gen := &stubGenerator{status: domain.JobStatus{
		State: domain.JobQueued,
		Queue: &domain.QueueInfo{Position: 3, Length: 9, ETASeconds: 120},
	}}
	srv := newTestServer(t, gen)

	var body map[string]any
	code := getJSON(t, srv.URL+"/api/jobs/hist-42", &body)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "queued", body["state"])
	require.Equal(t, "hist-42", gen.lastHandle.HistoryID)

	queue := body["queue"].(map[string]any)
	require.EqualValues(t, 3, queue["position"])
}

func TestCreditEndpoints(t *testing.T) {
	gen := &stubGenerator{history: &domain.CreditHistory{
		Records:     []domain.CreditRecord{{Title: "Daily credits", Amount: 60}},
		NextCursor:  "20",
		HasMore:     false,
		TotalCredit: 60,
	}}
	srv := newTestServer(t, gen)

	var credit map[string]any
	code := getJSON(t, srv.URL+"/api/credit", &credit)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 60, credit["total_credit"])

	var history map[string]any
	code = getJSON(t, srv.URL+"/api/credit/history?count=20", &history)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "20", history["next_cursor"])

	var receive map[string]any
	code = postJSON(t, srv.URL+"/api/credit/receive", nil, &receive)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 118, receive["total_credit"])
}
