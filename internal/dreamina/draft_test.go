package dreamina

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dreamina/internal/domain"
)

func TestBuildDraftTextMode(t *testing.T) {
	c := newTestClient(t, Options{})
	req := &domain.GenerationRequest{
		Mode:   domain.ModeText2Image,
		Prompt: "a lighthouse at dusk",
		Model:  "3.0",
		Ratio:  "16:9",
	}

	doc := c.buildDraft(req, 42, nil)

	require.Len(t, doc.ComponentList, 1)
	comp := doc.ComponentList[0]
	require.Equal(t, doc.MainComponentID, comp.ID, "root must point at its only component")
	require.Equal(t, "generate", comp.GenerateType)
	require.NotNil(t, comp.Abilities.Generate)
	require.Nil(t, comp.Abilities.Blend)

	core := comp.Abilities.Generate.CoreParam
	require.Equal(t, "a lighthouse at dusk", core.Prompt)
	require.NotNil(t, core.Seed)
	require.EqualValues(t, 42, *core.Seed)
	require.NotNil(t, core.NegativePrompt)
	require.Equal(t, 3, core.ImageRatio, "16:9 maps to ratio type 3")
	require.False(t, core.IntelligentRatio)
	require.NotNil(t, core.LargeImageInfo)
	require.Equal(t, 2560, core.LargeImageInfo.Width)
	require.Equal(t, 1440, core.LargeImageInfo.Height)
}

func TestBuildDraftEditMode(t *testing.T) {
	c := newTestClient(t, Options{})
	req := &domain.GenerationRequest{
		Mode:   domain.ModeImage2Image,
		Prompt: "make it snow",
		Model:  "3.0",
		Ratio:  "1:1",
	}
	uris := []string{"store/ref-1", "store/ref-2"}

	doc := c.buildDraft(req, 42, uris)

	require.Len(t, doc.ComponentList, 1)
	comp := doc.ComponentList[0]
	require.Equal(t, doc.MainComponentID, comp.ID)
	require.Equal(t, "blend", comp.GenerateType)
	require.Nil(t, comp.Abilities.Generate)
	require.NotNil(t, comp.Abilities.Blend)

	blend := comp.Abilities.Blend
	require.Equal(t, "##make it snow", blend.CoreParam.Prompt)
	require.Nil(t, blend.CoreParam.Seed, "edit core_param must omit seed")
	require.Nil(t, blend.CoreParam.NegativePrompt, "edit core_param must omit negative_prompt")

	require.Equal(t, "3.0.2", blend.MinVersion)
	require.False(t, blend.CoreParam.IntelligentRatio)

	require.Len(t, blend.AbilityList, 1, "all references share one byte_edit ability")
	ability := blend.AbilityList[0]
	require.Equal(t, "byte_edit", ability.Name)
	require.Equal(t, uris, ability.ImageURIList)
	require.Len(t, ability.ImageList, 2)
	for i, img := range ability.ImageList {
		require.Equal(t, uris[i], img.URI)
		require.Equal(t, uris[i], img.ImageURI)
		require.Equal(t, "upload", img.SourceFrom)
	}
	require.InDelta(t, 0.5, ability.Strength, 1e-9)

	require.Len(t, blend.PromptPlacehold, 1)
	require.Equal(t, 0, blend.PromptPlacehold[0].AbilityIndex)
}

func TestBuildDraftKeepsExistingEditMarker(t *testing.T) {
	c := newTestClient(t, Options{})
	req := &domain.GenerationRequest{Prompt: "##already marked", Model: "3.0", Ratio: "1:1"}

	doc := c.buildDraft(req, 1, []string{"store/ref"})

	prompt := doc.ComponentList[0].Abilities.Blend.CoreParam.Prompt
	require.Equal(t, "##already marked", prompt)
}

func TestBuildDraftUniqueIDs(t *testing.T) {
	c := newTestClient(t, Options{})
	req := &domain.GenerationRequest{Prompt: "ids", Model: "3.0", Ratio: "1:1"}

	doc := c.buildDraft(req, 7, []string{"store/ref"})

	seen := map[string]bool{doc.ID: true}
	comp := doc.ComponentList[0]
	for _, id := range []string{comp.ID, comp.Metadata.ID, comp.Abilities.ID} {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestMetricsExtra(t *testing.T) {
	raw, err := metricsExtra("submit-1")
	require.NoError(t, err)
	require.Contains(t, raw, `"generateId":"submit-1"`)
	require.Contains(t, raw, `"promptSource":"custom"`)
	require.Contains(t, raw, `"isRegenerate":false`)
}
