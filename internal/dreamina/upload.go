package dreamina

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"dreamina/internal/domain"
)

const (
	uploadTokenPath = "/artist/v2/tools/get_upload_token"

	imagexVersion = "2018-08-01"
	imagexRegion  = "ap-singapore-1"
	imagexService = "imagex"

	applyAction  = "ApplyImageUpload"
	commitAction = "CommitImageUpload"

	// applySalt is an opaque constant the web client sends with the apply
	// query. Observed value; meaning unknown.
	applySalt = "c8nxnei2ek"
)

type uploadTokenPayload struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	SpaceName       string `json:"space_name"`
	UploadDomain    string `json:"upload_domain"`
}

// FetchUploadToken obtains temporary object-storage credentials. One token
// serves a whole reference-image batch; its server-side TTL is unknown, so
// callers re-fetch after explicit upload failures instead of tracking
// expiry.
func (c *Client) FetchUploadToken(ctx context.Context, acct *domain.Account) (*domain.UploadToken, error) {
	env, err := c.postJSON(ctx, c.baseURL, uploadTokenPath, nil, map[string]int{"scene": 2}, acct)
	if err != nil {
		return nil, err
	}
	var payload uploadTokenPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, &domain.ProtocolError{Op: uploadTokenPath, Err: err}
	}
	if payload.AccessKeyID == "" || payload.SecretAccessKey == "" {
		return nil, &domain.ProtocolError{Op: uploadTokenPath, Err: errors.New("empty upload credentials")}
	}
	token := &domain.UploadToken{
		AccessKeyID:     payload.AccessKeyID,
		SecretAccessKey: payload.SecretAccessKey,
		SessionToken:    payload.SessionToken,
		SpaceName:       payload.SpaceName,
	}
	if payload.UploadDomain != "" {
		token.UploadHosts = []string{payload.UploadDomain}
	}
	return token, nil
}

// applyResult carries everything the transfer and commit phases need from
// a successful apply.
type applyResult struct {
	uploadHost string
	storeURI   string
	objectAuth string
	sessionKey string
}

type applyResponse struct {
	Result struct {
		UploadAddress struct {
			StoreInfos []struct {
				StoreURI string `json:"StoreUri"`
				Auth     string `json:"Auth"`
			} `json:"StoreInfos"`
			UploadHosts []string `json:"UploadHosts"`
			SessionKey  string   `json:"SessionKey"`
		} `json:"UploadAddress"`
	} `json:"Result"`
}

// canonicalQuery encodes params sorted by key, matching the string the
// provider reconstructs when verifying the signature.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(params[k]))
	}
	return buf.String()
}

// applyUpload reserves an upload slot. The signed GET carries exactly
// three canonical headers; adding or reordering any of them invalidates
// the signature with a generic auth error.
func (c *Client) applyUpload(ctx context.Context, token *domain.UploadToken, size int) (*applyResult, error) {
	amzDate := c.now().UTC().Format("20060102T150405Z")
	query := canonicalQuery(map[string]string{
		"Action":          applyAction,
		"Version":         imagexVersion,
		"ServiceId":       token.SpaceName,
		"FileSize":        strconv.Itoa(size),
		"s":               applySalt,
		"device_platform": "web",
	})

	canonicalHeaders := "host:" + c.imagexHost + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"x-amz-security-token:" + token.SessionToken + "\n"
	signedHeaders := "host;x-amz-date;x-amz-security-token"
	canonicalRequest := "GET\n/\n" + query + "\n" + canonicalHeaders + "\n" + signedHeaders + "\n" + sha256Hex(nil)

	auth := sigV4Authorization(token.AccessKeyID, token.SecretAccessKey, imagexRegion, imagexService, amzDate, signedHeaders, canonicalRequest)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imagexURL+"/?"+query, nil)
	if err != nil {
		return nil, &domain.UploadPhaseError{Phase: domain.UploadPhaseApply, Err: err}
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Security-Token", token.SessionToken)

	var decoded applyResponse
	if err := c.doUploadJSON(req, &decoded); err != nil {
		return nil, &domain.UploadPhaseError{Phase: domain.UploadPhaseApply, Err: err}
	}
	addr := decoded.Result.UploadAddress
	if len(addr.StoreInfos) == 0 || len(addr.UploadHosts) == 0 {
		return nil, &domain.UploadPhaseError{Phase: domain.UploadPhaseApply, Err: errors.New("no upload address in response")}
	}
	return &applyResult{
		uploadHost: addr.UploadHosts[0],
		storeURI:   addr.StoreInfos[0].StoreURI,
		objectAuth: addr.StoreInfos[0].Auth,
		sessionKey: addr.SessionKey,
	}, nil
}

type transferResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// transferUpload streams the object bytes to the host the apply phase
// returned. The CRC32 header is computed over the exact bytes sent; the
// provider rejects mismatches, so it doubles as local corruption detection.
func (c *Client) transferUpload(ctx context.Context, res *applyResult, data []byte) error {
	crc := strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 16)
	for len(crc) < 8 {
		crc = "0" + crc
	}

	endpoint := fmt.Sprintf("%s://%s/upload/v1/%s", c.uploadProto, res.uploadHost, res.storeURI)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return &domain.UploadPhaseError{Phase: domain.UploadPhaseTransfer, Err: err}
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Authorization", res.objectAuth)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Disposition", `attachment; filename="undefined"`)
	req.Header.Set("Content-Crc32", crc)
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")

	var decoded transferResponse
	if err := c.doUploadJSON(req, &decoded); err != nil {
		return &domain.UploadPhaseError{Phase: domain.UploadPhaseTransfer, Err: err}
	}
	if decoded.Code != 2000 {
		return &domain.UploadPhaseError{
			Phase: domain.UploadPhaseTransfer,
			Err:   fmt.Errorf("upload rejected: code=%d message=%q", decoded.Code, decoded.Message),
		}
	}
	return nil
}

type commitResponse struct {
	Result json.RawMessage `json:"Result"`
}

// commitUpload confirms the object server-side using the session key from
// apply. Unlike apply, the provider verifies this signature without the
// host header.
func (c *Client) commitUpload(ctx context.Context, token *domain.UploadToken, sessionKey string) error {
	amzDate := c.now().UTC().Format("20060102T150405Z")
	query := canonicalQuery(map[string]string{
		"Action":    commitAction,
		"Version":   imagexVersion,
		"ServiceId": token.SpaceName,
	})

	body, err := json.Marshal(map[string]string{"SessionKey": sessionKey})
	if err != nil {
		return &domain.UploadPhaseError{Phase: domain.UploadPhaseCommit, Err: err}
	}
	bodyHash := sha256Hex(body)

	canonicalHeaders := "x-amz-content-sha256:" + bodyHash + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"x-amz-security-token:" + token.SessionToken + "\n"
	signedHeaders := "x-amz-content-sha256;x-amz-date;x-amz-security-token"
	canonicalRequest := "POST\n/\n" + query + "\n" + canonicalHeaders + "\n" + signedHeaders + "\n" + bodyHash

	auth := sigV4Authorization(token.AccessKeyID, token.SecretAccessKey, imagexRegion, imagexService, amzDate, signedHeaders, canonicalRequest)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.imagexURL+"/?"+query, bytes.NewReader(body))
	if err != nil {
		return &domain.UploadPhaseError{Phase: domain.UploadPhaseCommit, Err: err}
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)
	req.Header.Set("X-Amz-Content-Sha256", bodyHash)
	req.Header.Set("X-Amz-Date", amzDate)
	req.Header.Set("X-Amz-Security-Token", token.SessionToken)
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", origin+"/")

	var decoded commitResponse
	if err := c.doUploadJSON(req, &decoded); err != nil {
		return &domain.UploadPhaseError{Phase: domain.UploadPhaseCommit, Err: err}
	}
	if len(decoded.Result) == 0 {
		return &domain.UploadPhaseError{Phase: domain.UploadPhaseCommit, Err: errors.New("no Result in commit response")}
	}
	return nil
}

// UploadImage runs the full three-phase pipeline for one image and returns
// its storage URI. A failed phase aborts this image only; commit is never
// attempted with a stale or absent session key.
func (c *Client) UploadImage(ctx context.Context, token *domain.UploadToken, data []byte) (string, error) {
	res, err := c.applyUpload(ctx, token, len(data))
	if err != nil {
		return "", err
	}
	if err := c.transferUpload(ctx, res, data); err != nil {
		return "", err
	}
	if err := c.commitUpload(ctx, token, res.sessionKey); err != nil {
		return "", err
	}
	return res.storeURI, nil
}

// UploadImages uploads a batch of reference images sharing one token. The
// default policy degrades gracefully: a failed image is dropped and its
// siblings proceed. With AbortOnUploadFailure the first failure aborts the
// batch. An error is returned only when nothing was uploaded.
func (c *Client) UploadImages(ctx context.Context, token *domain.UploadToken, images [][]byte) ([]string, error) {
	if len(images) > domain.MaxReferenceImages {
		images = images[:domain.MaxReferenceImages]
	}
	uris := make([]string, 0, len(images))
	var lastErr error
	for i, img := range images {
		uri, err := c.UploadImage(ctx, token, img)
		if err != nil {
			if c.abortOnFail {
				return nil, err
			}
			lastErr = err
			c.logger.Warn().Err(err).Int("index", i+1).Msg("reference upload failed, dropping image")
			continue
		}
		uris = append(uris, uri)
	}
	if len(uris) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoUploadSucceeded, lastErr)
		}
		return nil, domain.ErrNoUploadSucceeded
	}
	return uris, nil
}

// VerifyReference probes a freshly uploaded reference image with the
// service's face/IP check. The result is advisory: generation proceeds
// either way, so any failure simply reports false.
func (c *Client) VerifyReference(ctx context.Context, acct *domain.Account, storeURI string) bool {
	body := map[string]any{
		"scene":      "image_face_ip",
		"options":    map[string]bool{"ip_check": true},
		"req_key":    "benchmark_test_user_upload_image_input",
		"file_list":  []map[string]string{{"file_uri": storeURI}},
		"req_params": map[string]any{},
	}
	_, err := c.postJSON(ctx, c.baseURL, "/mweb/v1/algo_proxy", nil, body, acct)
	if err != nil {
		c.logger.Debug().Err(err).Str("uri", storeURI).Msg("reference probe failed")
		return false
	}
	return true
}

// doUploadJSON executes an object-storage request and decodes its JSON
// body into out.
func (c *Client) doUploadJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
