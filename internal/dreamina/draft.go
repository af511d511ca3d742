package dreamina

import (
	"encoding/json"
	"fmt"
	"strings"

	"dreamina/internal/domain"
)

const (
	draftMinVersion  = "3.0.2"
	draftVersion     = "3.3.0"
	draftAIGCMode    = "workbench"
	createdPlatform  = 3
	sampleStrength   = 0.5
	blendPromptMark  = "##"
	generateTypeText = "generate"
	generateTypeEdit = "blend"
)

// The draft document mirrors the web editor's internal state. Every node
// carries a "type" discriminator (empty for plain parameter nodes) and a
// fresh id; the provider validates the shape strictly and rejects drafts
// with missing or reused ids.

type draftDocument struct {
	Type            string           `json:"type"`
	ID              string           `json:"id"`
	MinVersion      string           `json:"min_version"`
	MinFeatures     []string         `json:"min_features"`
	IsFromTSN       bool             `json:"is_from_tsn"`
	Version         string           `json:"version"`
	MainComponentID string           `json:"main_component_id"`
	ComponentList   []draftComponent `json:"component_list"`
}

type draftComponent struct {
	Type         string         `json:"type"`
	ID           string         `json:"id"`
	MinVersion   string         `json:"min_version"`
	AIGCMode     string         `json:"aigc_mode"`
	Metadata     draftMetadata  `json:"metadata"`
	GenerateType string         `json:"generate_type"`
	Abilities    draftAbilities `json:"abilities"`
}

type draftMetadata struct {
	Type                   string `json:"type"`
	ID                     string `json:"id"`
	CreatedPlatform        int    `json:"created_platform"`
	CreatedPlatformVersion string `json:"created_platform_version"`
	CreatedTimeInMs        int64  `json:"created_time_in_ms"`
	CreatedDID             string `json:"created_did"`
}

type draftAbilities struct {
	Type     string           `json:"type"`
	ID       string           `json:"id"`
	Generate *generateAbility `json:"generate,omitempty"`
	Blend    *blendAbility    `json:"blend,omitempty"`
}

type generateAbility struct {
	Type          string        `json:"type"`
	ID            string        `json:"id"`
	CoreParam     coreParam     `json:"core_param"`
	HistoryOption historyOption `json:"history_option"`
}

type blendAbility struct {
	Type            string              `json:"type"`
	ID              string              `json:"id"`
	MinVersion      string              `json:"min_version"`
	MinFeatures     []string            `json:"min_features"`
	CoreParam       coreParam           `json:"core_param"`
	AbilityList     []byteEditAbility   `json:"ability_list"`
	PromptPlacehold []promptPlaceholder `json:"prompt_placeholder_info_list"`
	PosteditParam   posteditParam       `json:"postedit_param"`
	HistoryOption   historyOption       `json:"history_option"`
}

// coreParam is shared between text and image modes; seed and
// negative_prompt are pointers because the edit variant must omit them
// entirely, not send zero values.
type coreParam struct {
	Type             string          `json:"type"`
	ID               string          `json:"id"`
	Model            string          `json:"model"`
	Prompt           string          `json:"prompt"`
	NegativePrompt   *string         `json:"negative_prompt,omitempty"`
	Seed             *int64          `json:"seed,omitempty"`
	SampleStrength   float64         `json:"sample_strength"`
	ImageRatio       int             `json:"image_ratio"`
	LargeImageInfo   *largeImageInfo `json:"large_image_info,omitempty"`
	IntelligentRatio bool            `json:"intelligent_ratio"`
}

type largeImageInfo struct {
	Type           string `json:"type"`
	ID             string `json:"id"`
	Height         int    `json:"height"`
	Width          int    `json:"width"`
	ResolutionType string `json:"resolution_type"`
}

type byteEditAbility struct {
	Type         string     `json:"type"`
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	ImageURIList []string   `json:"image_uri_list"`
	ImageList    []refImage `json:"image_list"`
	Strength     float64    `json:"strength"`
}

type refImage struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	SourceFrom   string `json:"source_from"`
	PlatformType int    `json:"platform_type"`
	Name         string `json:"name"`
	ImageURI     string `json:"image_uri"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Format       string `json:"format"`
	URI          string `json:"uri"`
}

type promptPlaceholder struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	AbilityIndex int    `json:"ability_index"`
}

type posteditParam struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	GenerateType int    `json:"generate_type"`
}

type historyOption struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// buildDraft assembles the draft document for a normalized request. seed
// must already be concrete; refURIs is empty for text-to-image and holds
// the uploaded storage URIs for edits.
func (c *Client) buildDraft(req *domain.GenerationRequest, seed int64, refURIs []string) *draftDocument {
	model, _ := c.params.Model(req.Model)
	ratioType := c.params.RatioType(req.Ratio)
	width, height := c.params.Dimensions(req.Ratio)

	componentID := c.ids()
	large := &largeImageInfo{
		Type:           "",
		ID:             c.ids(),
		Height:         height,
		Width:          width,
		ResolutionType: c.params.ResolutionType,
	}

	component := draftComponent{
		Type:       "image_base_component",
		ID:         componentID,
		MinVersion: draftMinVersion,
		AIGCMode:   draftAIGCMode,
		Metadata: draftMetadata{
			ID:              c.ids(),
			CreatedPlatform: createdPlatform,
			CreatedTimeInMs: c.now().UnixMilli(),
		},
	}

	if len(refURIs) == 0 {
		negative := ""
		component.GenerateType = generateTypeText
		component.Abilities = draftAbilities{
			ID: c.ids(),
			Generate: &generateAbility{
				ID: c.ids(),
				CoreParam: coreParam{
					ID:             c.ids(),
					Model:          model.ModelReqKey,
					Prompt:         req.Prompt,
					NegativePrompt: &negative,
					Seed:           &seed,
					SampleStrength: sampleStrength,
					ImageRatio:     ratioType,
					LargeImageInfo: large,
				},
				HistoryOption: historyOption{ID: c.ids()},
			},
		}
	} else {
		images := make([]refImage, 0, len(refURIs))
		for _, uri := range refURIs {
			images = append(images, refImage{
				Type:         "image",
				ID:           c.ids(),
				SourceFrom:   "upload",
				PlatformType: 1,
				ImageURI:     uri,
				URI:          uri,
			})
		}
		prompt := req.Prompt
		if !editPrompt(prompt) {
			prompt = blendPromptMark + prompt
		}
		component.GenerateType = generateTypeEdit
		component.Abilities = draftAbilities{
			ID: c.ids(),
			Blend: &blendAbility{
				ID:          c.ids(),
				MinVersion:  draftMinVersion,
				MinFeatures: []string{},
				CoreParam: coreParam{
					ID:             c.ids(),
					Model:          model.ModelReqKey,
					Prompt:         prompt,
					SampleStrength: sampleStrength,
					ImageRatio:     ratioType,
					LargeImageInfo: large,
				},
				AbilityList: []byteEditAbility{{
					ID:           c.ids(),
					Name:         "byte_edit",
					ImageURIList: refURIs,
					ImageList:    images,
					Strength:     sampleStrength,
				}},
				PromptPlacehold: []promptPlaceholder{{ID: c.ids(), AbilityIndex: 0}},
				PosteditParam:   posteditParam{ID: c.ids(), GenerateType: 0},
				HistoryOption:   historyOption{ID: c.ids()},
			},
		}
	}

	return &draftDocument{
		Type:            "draft",
		ID:              c.ids(),
		MinVersion:      draftMinVersion,
		MinFeatures:     []string{},
		IsFromTSN:       true,
		Version:         draftVersion,
		MainComponentID: componentID,
		ComponentList:   []draftComponent{component},
	}
}

// encodeDraft serializes the draft to the string form the generation
// endpoint expects (double-encoded inside the outer request body).
func encodeDraft(doc *draftDocument) (string, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("dreamina: encode draft: %w", err)
	}
	return string(raw), nil
}

// metricsExtra builds the stringified telemetry blob the web client sends
// alongside every submission. The shape is identical for text and edit
// modes.
func metricsExtra(submitID string) (string, error) {
	payload := map[string]any{
		"promptSource":  "custom",
		"generateCount": 1,
		"enterFrom":     "click",
		"generateId":    submitID,
		"isRegenerate":  false,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("dreamina: encode metrics: %w", err)
	}
	return string(raw), nil
}

// editPrompt reports whether a prompt already carries the edit-mode
// marker prefix.
func editPrompt(prompt string) bool {
	return strings.HasPrefix(prompt, blendPromptMark)
}
