package dreamina

import (
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dreamina/internal/domain/jsoncfg"
	"dreamina/internal/infra"
)

const (
	appID  = "513641"
	origin = "https://dreamina.capcut.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"
)

// IDSource produces the randomized identifiers embedded in payloads
// (submission ids, draft component ids). Injectable so tests can assert on
// exact payload shape.
type IDSource func() string

// Options configures the vendor client.
type Options struct {
	BaseURL     string
	CommerceURL string
	ImagexURL   string

	Params     *jsoncfg.Params
	HTTPClient *http.Client
	Logger     *infra.Logger

	RequestTimeout time.Duration
	PollInterval   time.Duration
	MaxWait        time.Duration

	// AbortOnUploadFailure switches the reference-upload policy from
	// degrade-and-continue to all-or-nothing.
	AbortOnUploadFailure bool

	// IDs, Now and Rand are injectable for deterministic tests.
	IDs  IDSource
	Now  func() time.Time
	Rand *rand.Rand
}

// Client drives the Dreamina request protocol. It is safe for concurrent
// use; the account to act as is passed explicitly on every call rather than
// held as mutable client state.
type Client struct {
	baseURL     string
	commerceURL string
	imagexURL   string
	imagexHost  string
	uploadProto string

	params     *jsoncfg.Params
	httpClient *http.Client
	logger     *infra.Logger

	pollInterval time.Duration
	maxWait      time.Duration
	abortOnFail  bool

	tokens *TokenSource
	ids    IDSource
	now    func() time.Time
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://mweb-api-sg.capcut.com"
	}
	commerceURL := strings.TrimRight(opts.CommerceURL, "/")
	if commerceURL == "" {
		commerceURL = "https://commerce-api-sg.capcut.com"
	}
	imagexURL := strings.TrimRight(opts.ImagexURL, "/")
	if imagexURL == "" {
		imagexURL = "https://imagex-normal-sg.capcutapi.com"
	}
	parsed, err := url.Parse(imagexURL)
	if err != nil || parsed.Host == "" {
		return nil, errors.New("dreamina: invalid imagex url")
	}
	params := opts.Params
	if params == nil {
		params = &jsoncfg.Params{}
		params.Normalize()
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	ids := opts.IDs
	if ids == nil {
		ids = uuid.NewString
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = jsoncfg.DefaultCheckInterval
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = jsoncfg.DefaultMaxWait
	}

	return &Client{
		baseURL:      baseURL,
		commerceURL:  commerceURL,
		imagexURL:    imagexURL,
		imagexHost:   parsed.Host,
		uploadProto:  parsed.Scheme,
		params:       params,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		abortOnFail:  opts.AbortOnUploadFailure,
		tokens:       NewTokenSource(now, opts.Rand),
		ids:          ids,
		now:          now,
	}, nil
}

// Params exposes the active parameter tables.
func (c *Client) Params() *jsoncfg.Params { return c.params }

// PollInterval returns the configured poll cadence.
func (c *Client) PollInterval() time.Duration { return c.pollInterval }

// MaxWait returns the configured poll ceiling.
func (c *Client) MaxWait() time.Duration { return c.maxWait }
