package handler

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/ogurasousui/employer-onboarding/internal/core/notification"
	"github.com/ogurasousui/employer-onboarding/internal/platform/logger"
	"github.com/ogurasousui/employer-onboarding/internal/platform/requestctx"
)

const headerRequestID = "X-Request-ID"

// requestID は X-Request-ID を引き継ぐか ULID を採番し、リクエスト単位のロガーを context に載せます。
func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 128 {
			id = ulid.Make().String()
		}
		w.Header().Set(headerRequestID, id)

		ctx := requestctx.WithRequestID(r.Context(), id)
		ctx = logger.ToContext(ctx, h.log.With(logger.RequestID(id)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.logger(r).Info("request handled",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(status),
			logger.Duration(time.Since(start)),
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.logger(r).Error("panic recovered", zap.ByteString("stack", debug.Stack()))
				h.internalServerError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authenticate は Bearer トークンを検証し、sub を呼び出し元として context に載せます。
func (h *Handler) authenticate(next http.Handler) http.Handler {
	parser := jwt.NewParser(h.parserOptions()...)
	secret := []byte(h.auth.JWTSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			h.unauthorized(w, r)
			return
		}

		claims := &jwt.RegisteredClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			h.logger(r).Debug("token rejected", zap.Error(err))
			h.unauthorized(w, r)
			return
		}
		if strings.TrimSpace(claims.Subject) == "" {
			h.unauthorized(w, r)
			return
		}

		ctx := requestctx.WithCaller(r.Context(), claims.Subject)
		ctx = logger.ToContext(ctx, h.logger(r).With(logger.Caller(claims.Subject)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if h.auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(h.auth.Issuer))
	}
	if h.auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(h.auth.Audience))
	}
	return opts
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="employers"`)
	h.writeJSON(w, r, http.StatusUnauthorized, Response{Success: false, Messages: []string{messageUnauthorized}})
}

// notifications はリクエストごとに新しい通知ストアを用意します。
func (h *Handler) notifications(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := notification.WithStore(r.Context(), notification.NewStore())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
