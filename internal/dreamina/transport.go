package dreamina

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"dreamina/internal/domain"
)

// apiEnvelope is the vendor's uniform response wrapper. ret "0" means
// success; anything else is an application-level rejection carried in
// errmsg. Some endpoints return their payload in data, others as a
// stringified JSON document in response.
type apiEnvelope struct {
	Ret      string          `json:"ret"`
	ErrMsg   string          `json:"errmsg"`
	Data     json.RawMessage `json:"data"`
	Response string          `json:"response"`
}

// postJSON issues one signed POST and classifies the outcome. Every call
// derives a fresh credential bundle; bundles are never reused because the
// signature embeds the wall-clock second.
func (c *Client) postJSON(ctx context.Context, base, path string, query url.Values, body any, acct *domain.Account) (*apiEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("dreamina: encode request: %w", err)
	}

	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("dreamina: build request: %w", err)
	}

	bundle := c.tokens.Derive(acct, path)
	attachHeaders(req, bundle)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: path, Err: err}
	}

	// The vendor reports failures through the envelope, not HTTP status;
	// classify on body shape alone.
	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.ProtocolError{Op: path, Err: err}
	}
	if env.Ret != "0" {
		c.logger.Debug().Str("path", path).Str("ret", env.Ret).Str("errmsg", env.ErrMsg).Msg("vendor rejected request")
		return nil, &domain.ApplicationError{Code: env.Ret, Message: env.ErrMsg}
	}
	return &env, nil
}

// attachHeaders sets the browser-replay header set plus the credential
// bundle. Header shape mirrors the origin web client; the service silently
// rejects requests whose sign/device-time pair does not verify.
func attachHeaders(req *http.Request, bundle domain.CredentialBundle) {
	h := req.Header
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8,en-GB;q=0.7,en-US;q=0.6")
	h.Set("App-Sdk-Version", "48.0.0")
	h.Set("Appid", appID)
	h.Set("Appvr", appVersion)
	h.Set("Content-Type", "application/json")
	h.Set("Cookie", bundle.Cookie)
	h.Set("Device-Time", bundle.DeviceTime)
	h.Set("Lan", "en")
	h.Set("Loc", "US")
	h.Set("Origin", origin)
	h.Set("Pf", platformCode)
	h.Set("Priority", "u=1, i")
	h.Set("Referer", origin+"/")
	h.Set("Sign", bundle.Sign)
	h.Set("Sign-Ver", "1")
	h.Set("Tdid", "web")
	h.Set("User-Agent", userAgent)
	h.Set("msToken", bundle.MsToken)
	h.Set("x-bogus", bundle.ABogus)
}

// commonQuery is the fixed query-parameter block sent with generation and
// history calls.
func commonQuery() url.Values {
	q := url.Values{}
	q.Set("aid", appID)
	q.Set("device_platform", "web")
	q.Set("region", "US")
	q.Set("da_version", "3.3.0")
	q.Set("web_version", "6.6.0")
	q.Set("aigc_features", "app_lip_sync")
	q.Set("web_component_open_flag", "1")
	return q
}
