// Package dreamina implements the browser-side request protocol of the
// Dreamina image-generation service: credential derivation, signed JSON
// transport, the three-phase object-storage upload, draft construction, and
// the generation-job lifecycle.
package dreamina

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"dreamina/internal/domain"
)

const (
	platformCode = "7"
	appVersion   = "5.8.0"

	// signSalts bracket the signed string. Observed constants; the vendor
	// rejects any deviation with ret != "0", not an HTTP error.
	signSaltHead = "9e2c"
	signSaltTail = "11ac"

	msTokenLength = 107
	aBogusLength  = 32
	webIDLength   = 19

	// sid_guard advertises a 60-day session lifetime.
	sessionGuardSeconds = 60 * 24 * 60 * 60
)

const alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// TokenSource derives per-request credential bundles for accounts. Pure
// computation plus a process-local random source; never blocks.
type TokenSource struct {
	now    func() time.Time
	userID string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewTokenSource builds a TokenSource. now and rnd are injectable for
// deterministic tests; nil selects wall clock and a time-seeded source.
func NewTokenSource(now func() time.Time, rnd *rand.Rand) *TokenSource {
	if now == nil {
		now = time.Now
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &TokenSource{now: now, rnd: rnd}
	// One synthetic user id per process, shaped like the vendor's numeric ids.
	s.userID = s.randomDigits(webIDLength)
	return s
}

// Derive computes a fresh credential bundle for one request to path. The
// bundle is scoped to exactly that request; the timestamp component tracks
// wall clock, so bundles are never reused across calls.
func (s *TokenSource) Derive(acct *domain.Account, path string) domain.CredentialBundle {
	if acct.WebID == "" {
		acct.WebID = s.randomDigits(webIDLength)
	}
	ts := s.now().Unix()
	deviceTime := strconv.FormatInt(ts, 10)

	return domain.CredentialBundle{
		Cookie:     s.cookie(acct, ts),
		DeviceTime: deviceTime,
		Sign:       Sign(path, deviceTime),
		MsToken:    s.randomAlnum(msTokenLength),
		ABogus:     s.randomAlnum(aBogusLength),
	}
}

// Sign computes the request signature header: an md5 over a fixed-format
// string embedding the salts, the last 7 characters of the request path,
// the platform code, the app version, and the unix timestamp.
func Sign(path, deviceTime string) string {
	tail := path
	if len(tail) > 7 {
		tail = tail[len(tail)-7:]
	}
	sum := md5.Sum([]byte(signSaltHead + "|" + tail + "|" + platformCode + "|" + appVersion + "|" + deviceTime + "||" + signSaltTail))
	return hex.EncodeToString(sum[:])
}

// cookie assembles the session cookie. Part order matches what the origin
// issues; the service treats the cookie as opaque but rate-limits on shape.
func (s *TokenSource) cookie(acct *domain.Account, ts int64) string {
	sid := acct.SessionID
	expire := time.Unix(ts+sessionGuardSeconds, 0).UTC().Format("Mon, 02-Jan-2006 15:04:05") + " GMT"

	ucpSum := md5.Sum([]byte(sid + strconv.FormatInt(ts, 10)))
	ucp := hex.EncodeToString(ucpSum[:])

	parts := []string{
		"sessionid=" + sid,
		"sessionid_ss=" + sid,
		"_tea_web_id=" + acct.WebID,
		"web_id=" + acct.WebID,
		"_v2_spipe_web_id=" + acct.WebID,
		"uid_tt=" + s.userID,
		"uid_tt_ss=" + s.userID,
		"sid_tt=" + sid,
		fmt.Sprintf("sid_guard=%s%%7C%d%%7C%d%%7C%s", sid, ts, sessionGuardSeconds, expire),
		"ssid_ucp_v1=1.0.0-" + ucp,
		"sid_ucp_v1=1.0.0-" + ucp,
		"store-region=cn-gd",
		"store-region-src=uid",
		"is_staff_user=false",
	}

	cookie := parts[0]
	for _, p := range parts[1:] {
		cookie += "; " + p
	}
	return cookie
}

func (s *TokenSource) randomAlnum(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = alnum[s.rnd.Intn(len(alnum))]
	}
	return string(b)
}

func (s *TokenSource) randomDigits(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + s.rnd.Intn(10))
	}
	return string(b)
}

// randomSeed draws a generation seed in the vendor-accepted range.
func (s *TokenSource) randomSeed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.MinSeed + s.rnd.Int63n(domain.MaxSeed-domain.MinSeed+1)
}
