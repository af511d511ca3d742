package dreamina

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dreamina/internal/domain"
)

type uploadStub struct {
	mu        sync.Mutex
	applies   int
	transfers int
	commits   int
	// failTransfers holds 1-based transfer ordinals that should be
	// rejected with a non-2000 code.
	failTransfers map[int]bool

	lastApplyAuth string
	lastCrc       string
}

func (s *uploadStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/artist/v2/tools/get_upload_token":
			writeEnvelope(w, map[string]any{
				"access_key_id":     "AKTEST",
				"secret_access_key": "SKTEST",
				"session_token":     "STTEST",
				"space_name":        "test-space",
				"upload_domain":     r.Host,
			})
		case r.URL.Query().Get("Action") == "ApplyImageUpload":
			s.mu.Lock()
			s.applies++
			n := s.applies
			s.lastApplyAuth = r.Header.Get("Authorization")
			s.mu.Unlock()
			resp := map[string]any{
				"Result": map[string]any{
					"UploadAddress": map[string]any{
						"StoreInfos": []map[string]any{
							{"StoreUri": fmt.Sprintf("store/obj-%d", n), "Auth": fmt.Sprintf("auth-%d", n)},
						},
						"UploadHosts": []string{r.Host},
						"SessionKey":  fmt.Sprintf("session-%d", n),
					},
				},
			}
			json.NewEncoder(w).Encode(resp)
		case r.URL.Query().Get("Action") == "CommitImageUpload":
			s.mu.Lock()
			s.commits++
			s.mu.Unlock()
			json.NewEncoder(w).Encode(map[string]any{
				"Result": map[string]any{"Results": []any{}},
			})
		case strings.HasPrefix(r.URL.Path, "/upload/v1/"):
			s.mu.Lock()
			s.transfers++
			n := s.transfers
			s.lastCrc = r.Header.Get("Content-Crc32")
			fail := s.failTransfers[n]
			s.mu.Unlock()
			if fail {
				json.NewEncoder(w).Encode(map[string]any{"code": 5000, "message": "corrupted"})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"code": 2000, "message": "ok"})
		default:
			http.NotFound(w, r)
		}
	}
}

func writeEnvelope(w http.ResponseWriter, data any) {
	json.NewEncoder(w).Encode(map[string]any{"ret": "0", "errmsg": "", "data": data})
}

func newUploadClient(t *testing.T, stub *uploadStub, abort bool) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return newTestClient(t, Options{
		BaseURL:              srv.URL,
		ImagexURL:            srv.URL,
		AbortOnUploadFailure: abort,
	})
}

func testAccount() *domain.Account {
	return &domain.Account{SessionID: "test-session-id"}
}

func TestUploadImageAllPhases(t *testing.T) {
	stub := &uploadStub{}
	c := newUploadClient(t, stub, false)

	token, err := c.FetchUploadToken(context.Background(), testAccount())
	require.NoError(t, err)
	require.Equal(t, "AKTEST", token.AccessKeyID)
	require.Equal(t, "test-space", token.SpaceName)

	payload := []byte("fake image bytes")
	uri, err := c.UploadImage(context.Background(), token, payload)
	require.NoError(t, err)
	require.Equal(t, "store/obj-1", uri)

	require.Equal(t, 1, stub.applies)
	require.Equal(t, 1, stub.transfers)
	require.Equal(t, 1, stub.commits)

	wantCrc := fmt.Sprintf("%08x", crc32.ChecksumIEEE(payload))
	require.Equal(t, wantCrc, stub.lastCrc)
	require.True(t, strings.HasPrefix(stub.lastApplyAuth, "AWS4-HMAC-SHA256 Credential=AKTEST/"))
	require.Contains(t, stub.lastApplyAuth, "SignedHeaders=host;x-amz-date;x-amz-security-token")
}

func TestUploadImagesDropsFailedAndKeepsRest(t *testing.T) {
	stub := &uploadStub{failTransfers: map[int]bool{3: true}}
	c := newUploadClient(t, stub, false)

	token, err := c.FetchUploadToken(context.Background(), testAccount())
	require.NoError(t, err)

	images := make([][]byte, 6)
	for i := range images {
		images[i] = []byte(fmt.Sprintf("image-%d", i))
	}

	uris, err := c.UploadImages(context.Background(), token, images)
	require.NoError(t, err)
	require.Len(t, uris, 5, "one failed upload must not sink its siblings")
	require.NotContains(t, uris, "store/obj-3")
}

func TestUploadImagesAbortPolicy(t *testing.T) {
	stub := &uploadStub{failTransfers: map[int]bool{2: true}}
	c := newUploadClient(t, stub, true)

	token, err := c.FetchUploadToken(context.Background(), testAccount())
	require.NoError(t, err)

	_, err = c.UploadImages(context.Background(), token, [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	var phaseErr *domain.UploadPhaseError
	require.ErrorAs(t, err, &phaseErr)
	require.Equal(t, domain.UploadPhaseTransfer, phaseErr.Phase)
	require.Equal(t, 2, stub.transfers, "batch must stop at the first failure")
}

func TestUploadImagesAllFailed(t *testing.T) {
	stub := &uploadStub{failTransfers: map[int]bool{1: true, 2: true}}
	c := newUploadClient(t, stub, false)

	token, err := c.FetchUploadToken(context.Background(), testAccount())
	require.NoError(t, err)

	_, err = c.UploadImages(context.Background(), token, [][]byte{[]byte("a"), []byte("b")})
	require.True(t, errors.Is(err, domain.ErrNoUploadSucceeded))
}
