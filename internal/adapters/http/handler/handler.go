// Package handler は社員 API の HTTP アダプタです。
package handler

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"go.uber.org/zap"

	"github.com/ogurasousui/employer-onboarding/internal/core/employer"
	"github.com/ogurasousui/employer-onboarding/internal/platform/config"
	"github.com/ogurasousui/employer-onboarding/internal/platform/logger"
	"github.com/ogurasousui/employer-onboarding/internal/platform/metrics"
)

// HealthCheck は依存先の疎通を確認します。
type HealthCheck func(ctx context.Context) error

// Handler は社員 API のルーティングとリクエスト変換を担います。
type Handler struct {
	service    employer.UseCase
	validate   *validator.Validate
	translator ut.Translator
	auth       config.AuthConfig
	metrics    *metrics.Metrics
	health     HealthCheck
	log        *zap.Logger
}

// Option は Handler の任意設定です。
type Option func(*Handler)

// WithMetrics は HTTP 計測と /metrics エンドポイントを有効にします。
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithHealthCheck は /healthz で実行する確認処理を設定します。
func WithHealthCheck(check HealthCheck) Option {
	return func(h *Handler) { h.health = check }
}

// WithLogger はロガーを差し替えます。
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// New は Handler を生成します。
func New(service employer.UseCase, auth config.AuthConfig, opts ...Option) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	h := &Handler{
		service:    service,
		validate:   validate,
		translator: trans,
		auth:       auth,
		log:        logger.Named("http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes はルーターを組み立てます。
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(h.requestID)
	r.Use(h.requestLogger)
	r.Use(h.recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Get("/healthz", h.Healthz)

	r.Route("/api/employers", func(r chi.Router) {
		r.Use(h.authenticate)
		r.Use(h.notifications)

		r.Get("/", h.ListEmployers)
		r.Post("/", h.CreateEmployer)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetEmployer)
			r.Put("/", h.UpdateEmployer)
			r.Delete("/", h.DeleteEmployer)
			r.Patch("/password", h.UpdatePassword)
		})
	})

	return r
}

// Healthz は依存先の状態を返します。
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger(r).Warn("health check failed", zap.Error(err))
			h.writeJSON(w, r, http.StatusServiceUnavailable, Response{Success: false, Messages: []string{"unavailable"}})
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, Response{Success: true, Messages: []string{"ok"}})
}

func (h *Handler) logger(r *http.Request) *zap.Logger {
	return logger.From(r.Context(), h.log)
}
