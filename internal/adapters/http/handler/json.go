package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ogurasousui/employer-onboarding/internal/core/notification"
)

const (
	maxBodyBytes = 1 << 20

	messageInternalError = "Internal Server Error."
	messageUnauthorized  = "Unauthorized."
	messageInvalidBody   = "Request body is not valid JSON."
)

// Response は全エンドポイント共通の応答形式です。
type Response struct {
	Success  bool     `json:"success"`
	Messages []string `json:"messages"`
	Data     any      `json:"data"`
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode body: unexpected trailing data")
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger(r).Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) success(w http.ResponseWriter, r *http.Request, messages []string, data any) {
	if messages == nil {
		messages = []string{}
	}
	h.writeJSON(w, r, http.StatusOK, Response{Success: true, Messages: messages, Data: data})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, messages []string) {
	h.writeJSON(w, r, http.StatusBadRequest, Response{Success: false, Messages: messages})
}

// rejected は通知ストアの内容を 400 で返します。
func (h *Handler) rejected(w http.ResponseWriter, r *http.Request) {
	h.badRequest(w, r, notification.FromContext(r.Context()).Messages())
}

func (h *Handler) invalidRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		h.badRequest(w, r, []string{messageInvalidBody})
		return
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fe.Translate(h.translator))
	}
	h.badRequest(w, r, messages)
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger(r).Error("request failed", zap.Error(err))
	h.writeJSON(w, r, http.StatusInternalServerError, Response{Success: false, Messages: []string{messageInternalError}})
}
