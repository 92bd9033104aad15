package handlers

import (
	"context"
	"net/http"
	"time"

	"akita-notify-go/internal/models"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const sessionName = "akita-console"

// NewSessionStore returns the cookie store backing console logins.
func NewSessionStore(key []byte, secure bool) *sessions.CookieStore {
	s := sessions.NewCookieStore(key)
	s.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((8 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return s
}

// LoginHandler handles operator login. Accounts with 2FA need a second call
// carrying the current code.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	op, err := h.Operators.GetOperatorByUsername(r.Context(), req.Username)
	if err != nil || !op.CheckPassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if op.TOTPEnabled {
		if req.Code == "" {
			writeJSON(w, http.StatusOK, map[string]any{"requires_2fa": true})
			return
		}
		if !models.VerifyTOTPCode(op.TOTPSecret, req.Code) {
			writeError(w, http.StatusUnauthorized, "Invalid verification code")
			return
		}
	}

	session, _ := h.Sessions.Get(r, sessionName)
	session.Values["operator_id"] = op.ID
	session.Values["username"] = op.Username
	session.Values["role"] = op.Role
	if err := session.Save(r, w); err != nil {
		h.logger().Error("save console session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	h.logger().Info("operator logged in", zap.String("username", op.Username))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "operator": op})
}

// LogoutHandler handles logout
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	session, _ := h.Sessions.Get(r, sessionName)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	_ = session.Save(r, w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type consoleUser struct {
	ID       int
	Username string
	Role     string
}

func (h *Handler) currentOperator(r *http.Request) (consoleUser, bool) {
	session, err := h.Sessions.Get(r, sessionName)
	if err != nil {
		return consoleUser{}, false
	}
	id, _ := session.Values["operator_id"].(int)
	username, _ := session.Values["username"].(string)
	role, _ := session.Values["role"].(string)
	return consoleUser{ID: id, Username: username, Role: role}, id != 0
}

// RequireOperator checks if an operator is logged in
func (h *Handler) RequireOperator(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.currentOperator(r); !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// RequireAdmin checks if the operator is an admin
func (h *Handler) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return h.RequireOperator(func(w http.ResponseWriter, r *http.Request) {
		if u, _ := h.currentOperator(r); u.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r)
	})
}

// EnsureAdmin creates the first console admin from configuration when the
// operators table is empty.
func (h *Handler) EnsureAdmin(ctx context.Context, username, password string) error {
	n, err := h.Operators.CountOperators(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if username == "" || password == "" {
		h.logger().Warn("no console operators exist; set CONSOLE_ADMIN_USER and CONSOLE_ADMIN_PASSWORD to create one")
		return nil
	}
	op, err := h.Operators.CreateOperator(ctx, username, password, models.RoleAdmin)
	if err != nil {
		return err
	}
	h.logger().Info("created console admin", zap.String("username", op.Username))
	return nil
}
