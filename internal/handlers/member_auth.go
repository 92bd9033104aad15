package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type ctxKey int

const memberKey ctxKey = iota

// RequireMember accepts an HS256 bearer token issued by the community backend
// and stores its subject as the member id.
func (h *Handler) RequireMember(next http.HandlerFunc) http.HandlerFunc {
	secret := []byte(h.Opts.JWTSecret)
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || claims.Subject == "" {
			h.logger().Debug("rejected member token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), memberKey, claims.Subject)))
	}
}

// MemberID returns the authenticated member, or "" outside RequireMember.
func MemberID(ctx context.Context) string {
	id, _ := ctx.Value(memberKey).(string)
	return id
}
