package dreamina

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dreamina/internal/domain"
	"dreamina/internal/domain/jsoncfg"
)

const (
	generatePath = "/mweb/v1/aigc_draft/generate"
	historyPath  = "/mweb/v1/get_history_by_ids"

	statusDone = 50

	failCodeBlocked = "1180"
)

// Submit sends a generation request and returns a handle for polling. For
// text-to-image the handle polls by submit id; for edits the reference
// images are uploaded first and the handle polls by history record id,
// carrying the uploaded URIs so result extraction can drop echoed inputs.
func (c *Client) Submit(ctx context.Context, acct *domain.Account, req *domain.GenerationRequest) (domain.JobHandle, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return domain.JobHandle{}, domain.ErrEmptyPrompt
	}
	modelKey := req.Model
	if modelKey == "" {
		modelKey = c.params.DefaultModel
	}
	model, ok := c.params.Model(modelKey)
	if !ok {
		return domain.JobHandle{}, fmt.Errorf("%w: %q", domain.ErrModelNotConfigured, modelKey)
	}
	req.Model = modelKey
	if req.Ratio == "" {
		req.Ratio = jsoncfg.DefaultRatio
	}

	var inputURIs []string
	if req.Mode == domain.ModeImage2Image || len(req.ReferenceImages) > 0 {
		req.Mode = domain.ModeImage2Image
		token, err := c.FetchUploadToken(ctx, acct)
		if err != nil {
			return domain.JobHandle{}, err
		}
		inputURIs, err = c.UploadImages(ctx, token, req.ReferenceImages)
		if err != nil {
			return domain.JobHandle{}, err
		}
		for _, uri := range inputURIs {
			c.VerifyReference(ctx, acct, uri)
		}
	}

	seed := domain.NormalizeSeed(req.Seed, c.tokens.randomSeed)
	submitID := c.ids()

	draft, err := encodeDraft(c.buildDraft(req, seed, inputURIs))
	if err != nil {
		return domain.JobHandle{}, err
	}
	metrics, err := metricsExtra(submitID)
	if err != nil {
		return domain.JobHandle{}, err
	}

	body := map[string]any{
		"extend":           map[string]string{"root_model": model.ModelReqKey, "template_id": ""},
		"submit_id":        submitID,
		"metrics_extra":    metrics,
		"draft_content":    draft,
		"http_common_info": map[string]int{"aid": 513641},
	}

	env, err := c.postJSON(ctx, c.baseURL, generatePath, commonQuery(), body, acct)
	if err != nil {
		return domain.JobHandle{}, err
	}
	var payload struct {
		AIGCData struct {
			HistoryRecordID string `json:"history_record_id"`
		} `json:"aigc_data"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return domain.JobHandle{}, &domain.ProtocolError{Op: generatePath, Err: err}
	}
	historyID := payload.AIGCData.HistoryRecordID

	handle := domain.JobHandle{HistoryID: historyID, InputURIs: inputURIs}
	if req.Mode != domain.ModeImage2Image {
		// Text jobs poll by submit id; the history id may lag behind.
		handle.SubmitID = submitID
	} else if historyID == "" {
		return domain.JobHandle{}, &domain.ProtocolError{Op: generatePath, Err: errors.New("no history_record_id in response")}
	}

	c.logger.Info().
		Str("submit_id", submitID).
		Str("history_id", historyID).
		Str("mode", string(req.Mode)).
		Msg("generation submitted")
	return handle, nil
}

type historyRecord struct {
	Status              int    `json:"status"`
	FailCode            string `json:"fail_code"`
	FailMsg             string `json:"fail_msg"`
	FailStarlingMessage string `json:"fail_starling_message"`
	Task                struct {
		Status int `json:"status"`
	} `json:"task"`
	ItemList     []historyItem     `json:"item_list"`
	Resources    []historyResource `json:"resources"`
	DraftContent string            `json:"draft_content"`
	QueueInfo    *queuePayload     `json:"queue_info"`
}

type historyItem struct {
	Image struct {
		LargeImages []largeImage `json:"large_images"`
	} `json:"image"`
	CommonAttr struct {
		CoverURL string `json:"cover_url"`
	} `json:"common_attr"`
}

type largeImage struct {
	ImageURL string `json:"image_url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
}

type historyResource struct {
	Type      string `json:"type"`
	Key       string `json:"key"`
	OriKey    string `json:"ori_key"`
	ImageInfo struct {
		ImageURL     string `json:"image_url"`
		ImageOrigURL string `json:"image_orig_url"`
	} `json:"image_info"`
}

type queuePayload struct {
	QueueIdx    int `json:"queue_idx"`
	QueueLength int `json:"queue_length"`
	QueueStatus int `json:"queue_status"`
	Threshold   struct {
		WaitingTimeThreshold int `json:"waiting_time_threshold"`
	} `json:"priority_queue_display_threshold"`
}

// PollOnce asks the service for the job's current state. Failed and
// Blocked outcomes are reported as statuses, not errors; an error means
// the poll itself could not be completed.
func (c *Client) PollOnce(ctx context.Context, acct *domain.Account, handle domain.JobHandle) (domain.JobStatus, error) {
	if !handle.Valid() {
		return domain.JobStatus{}, errors.New("dreamina: poll: empty job handle")
	}

	var body map[string]any
	recordKey := handle.HistoryID
	if handle.SubmitID != "" {
		recordKey = handle.SubmitID
		body = map[string]any{"submit_ids": []string{handle.SubmitID}}
	} else {
		body = map[string]any{
			"history_ids":      []string{handle.HistoryID},
			"image_info":       resultImageInfo(),
			"http_common_info": map[string]int{"aid": 513641},
		}
	}

	env, err := c.postJSON(ctx, c.baseURL, historyPath, commonQuery(), body, acct)
	if err != nil {
		return domain.JobStatus{}, err
	}
	records := map[string]historyRecord{}
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return domain.JobStatus{}, &domain.ProtocolError{Op: historyPath, Err: err}
	}
	record, ok := records[recordKey]
	if !ok {
		// The record can take a beat to materialize after submission.
		return domain.JobStatus{State: domain.JobProcessing}, nil
	}
	return c.interpretRecord(record, handle), nil
}

func (c *Client) interpretRecord(record historyRecord, handle domain.JobHandle) domain.JobStatus {
	if record.FailCode != "" && record.FailCode != "0" {
		message := record.FailStarlingMessage
		if message == "" {
			message = record.FailMsg
		}
		state := domain.JobFailed
		if record.FailCode == failCodeBlocked {
			state = domain.JobBlocked
		}
		return domain.JobStatus{State: state, FailCode: record.FailCode, FailMessage: message}
	}

	status := record.Status
	if handle.SubmitID != "" {
		status = record.Task.Status
	}
	if status != statusDone {
		if q := record.QueueInfo; q != nil && q.QueueStatus == 1 {
			return domain.JobStatus{
				State: domain.JobQueued,
				Queue: &domain.QueueInfo{
					Position:   q.QueueIdx,
					Length:     q.QueueLength,
					ETASeconds: q.Threshold.WaitingTimeThreshold,
				},
			}
		}
		return domain.JobStatus{State: domain.JobProcessing}
	}

	urls := extractImageURLs(record, handle.InputURIs)
	if len(urls) == 0 {
		// Status flips to done slightly before the resource list fills in.
		return domain.JobStatus{State: domain.JobProcessing}
	}
	return domain.JobStatus{State: domain.JobSucceeded, ImageURLs: urls}
}

// extractImageURLs collects result URLs, dropping any resource that is an
// echo of an uploaded reference image. Inputs are recognized both from the
// handle and from the byte_edit lists in the record's own draft content,
// since the latter survives restarts that lose the handle's URI list.
func extractImageURLs(record historyRecord, inputURIs []string) []string {
	inputs := make(map[string]struct{}, len(inputURIs))
	for _, uri := range inputURIs {
		inputs[uri] = struct{}{}
	}
	for _, uri := range draftInputURIs(record.DraftContent) {
		inputs[uri] = struct{}{}
	}

	var urls []string
	for _, res := range record.Resources {
		if res.Type != "image" {
			continue
		}
		uri := res.OriKey
		if uri == "" {
			uri = res.ImageInfo.ImageOrigURL
		}
		if uri == "" {
			uri = res.Key
		}
		if _, echoed := inputs[uri]; echoed && uri != "" {
			continue
		}
		if res.ImageInfo.ImageURL != "" {
			urls = append(urls, res.ImageInfo.ImageURL)
		}
	}
	if len(urls) > 0 {
		return urls
	}

	for _, item := range record.ItemList {
		if len(item.Image.LargeImages) > 0 {
			for _, img := range item.Image.LargeImages {
				if img.ImageURL != "" {
					urls = append(urls, img.ImageURL)
				}
			}
			continue
		}
		if item.CommonAttr.CoverURL != "" {
			urls = append(urls, item.CommonAttr.CoverURL)
		}
	}
	return urls
}

// draftInputURIs parses the echoed draft content for byte_edit reference
// URIs. A malformed draft is treated as having none.
func draftInputURIs(draftContent string) []string {
	if draftContent == "" {
		return nil
	}
	var doc struct {
		ComponentList []struct {
			Abilities struct {
				Blend *struct {
					AbilityList []struct {
						Name         string `json:"name"`
						ImageURIList []string `json:"image_uri_list"`
						ImageList    []struct {
							URI string `json:"uri"`
						} `json:"image_list"`
					} `json:"ability_list"`
				} `json:"blend"`
			} `json:"abilities"`
		} `json:"component_list"`
	}
	if err := json.Unmarshal([]byte(draftContent), &doc); err != nil {
		return nil
	}
	var uris []string
	for _, comp := range doc.ComponentList {
		if comp.Abilities.Blend == nil {
			continue
		}
		for _, ability := range comp.Abilities.Blend.AbilityList {
			if ability.Name != "byte_edit" {
				continue
			}
			for _, uri := range ability.ImageURIList {
				if uri != "" {
					uris = append(uris, uri)
				}
			}
			for _, img := range ability.ImageList {
				if img.URI != "" {
					uris = append(uris, img.URI)
				}
			}
		}
	}
	return uris
}

func resultImageInfo() map[string]any {
	return map[string]any{
		"width":  2048,
		"height": 2048,
		"format": "webp",
		"image_scene_list": []map[string]any{
			{"scene": "normal", "width": 2400, "height": 2400, "uniq_key": "2400", "format": "webp"},
			{"scene": "loss", "width": 1080, "height": 1080, "uniq_key": "1080", "format": "webp"},
			{"scene": "loss", "width": 720, "height": 720, "uniq_key": "720", "format": "webp"},
			{"scene": "loss", "width": 480, "height": 480, "uniq_key": "480", "format": "webp"},
			{"scene": "loss", "width": 360, "height": 360, "uniq_key": "360", "format": "webp"},
		},
	}
}

// WaitUntilTerminal polls at the configured interval until the job
// reaches a terminal state or the wait budget is spent. Transient poll
// errors are logged and retried on the next tick; the budget allows
// exactly maxWait/interval polls, each preceded by a full interval sleep.
func (c *Client) WaitUntilTerminal(ctx context.Context, acct *domain.Account, handle domain.JobHandle) (domain.JobStatus, error) {
	attempts := int(c.maxWait / c.pollInterval)
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()

	var last domain.JobStatus
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		status, err := c.PollOnce(ctx, acct, handle)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			c.logger.Warn().Err(err).Msg("poll failed, retrying")
		} else {
			last = status
			if status.State.Terminal() {
				return status, nil
			}
			if q := status.Queue; q != nil {
				c.logger.Info().
					Int("position", q.Position).
					Int("length", q.Length).
					Msg("job queued")
			}
		}
		timer.Reset(c.pollInterval)
	}
	return last, domain.ErrTimedOut
}

// Generate runs the full synchronous flow: submit, one immediate poll,
// then interval polling until a terminal state or timeout.
func (c *Client) Generate(ctx context.Context, acct *domain.Account, req *domain.GenerationRequest) (domain.JobStatus, error) {
	handle, err := c.Submit(ctx, acct, req)
	if err != nil {
		return domain.JobStatus{}, err
	}

	// Fast jobs are sometimes done before the first interval elapses.
	status, err := c.PollOnce(ctx, acct, handle)
	if err == nil && status.State.Terminal() {
		return status, nil
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("initial poll failed, retrying")
	}

	return c.WaitUntilTerminal(ctx, acct, handle)
}

// DownloadImage fetches a result image. The URL comes from the service's
// own response, so no request signing applies.
func (c *Client) DownloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: "download", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", origin+"/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "download", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.TransportError{Op: "download", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "download", Err: err}
	}
	return data, nil
}
