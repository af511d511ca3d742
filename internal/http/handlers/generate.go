package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dreamina/internal/domain"
)

const maxReferenceUploadBytes = 32 << 20

type generateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
	Model  string `json:"model"`
	Ratio  string `json:"ratio"`
	Seed   int64  `json:"seed"`
}

func (a *App) GenerateText(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}
	if req.Seed == 0 {
		req.Seed = domain.SeedAuto
	}

	status, err := a.Client.Generate(r.Context(), a.Accounts.Current(), &domain.GenerationRequest{
		Mode:   domain.ModeText2Image,
		Prompt: req.Prompt,
		Model:  req.Model,
		Ratio:  req.Ratio,
		Seed:   req.Seed,
	})
	if err != nil {
		a.generationError(w, err)
		return
	}
	a.json(w, http.StatusOK, statusBody(status))
}

func (a *App) GenerateFromImages(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxReferenceUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}
	prompt := r.FormValue("prompt")
	if prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one reference image is required")
		return
	}
	if len(files) > domain.MaxReferenceImages {
		files = files[:domain.MaxReferenceImages]
	}
	images := make([][]byte, 0, len(files))
	for _, header := range files {
		file, err := header.Open()
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable reference image")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "unreadable reference image")
			return
		}
		images = append(images, data)
	}

	status, err := a.Client.Generate(r.Context(), a.Accounts.Current(), &domain.GenerationRequest{
		Mode:            domain.ModeImage2Image,
		Prompt:          prompt,
		Model:           r.FormValue("model"),
		Ratio:           r.FormValue("ratio"),
		Seed:            domain.SeedAuto,
		ReferenceImages: images,
	})
	if err != nil {
		a.generationError(w, err)
		return
	}
	a.json(w, http.StatusOK, statusBody(status))
}

func (a *App) generationError(w http.ResponseWriter, err error) {
	var appErr *domain.ApplicationError
	switch {
	case errors.Is(err, domain.ErrEmptyPrompt):
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
	case errors.Is(err, domain.ErrModelNotConfigured):
		a.error(w, http.StatusBadRequest, "bad_request", "unknown model")
	case errors.Is(err, domain.ErrNoUploadSucceeded):
		a.error(w, http.StatusBadGateway, "upstream", "no reference image could be uploaded")
	case errors.Is(err, domain.ErrTimedOut):
		a.error(w, http.StatusGatewayTimeout, "timeout", "generation did not finish in time")
	case errors.As(err, &appErr):
		a.Logger.Error().Err(err).Msg("generation rejected upstream")
		a.error(w, http.StatusBadGateway, "upstream", appErr.Message)
	default:
		a.Logger.Error().Err(err).Msg("generation failed")
		a.error(w, http.StatusInternalServerError, "internal", "generation failed")
	}
}
