package handlers

import (
	"net/http"

	"akita-notify-go/internal/models"

	"go.uber.org/zap"
)

const pendingTOTPKey = "pending_totp_secret"

// Setup2FAHandler generates a new TOTP secret and QR code for the logged-in
// operator. The secret is held in the session until Enable2FAHandler
// confirms a code against it.
func (h *Handler) Setup2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, _ := h.currentOperator(r)

	key, err := models.NewTOTPKey(u.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate secret")
		return
	}
	qrCode, err := models.TOTPQRCode(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate QR code")
		return
	}

	session, _ := h.Sessions.Get(r, sessionName)
	session.Values[pendingTOTPKey] = key.Secret()
	if err := session.Save(r, w); err != nil {
		h.logger().Error("save pending 2fa secret", zap.Int("operator_id", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"secret":  key.Secret(),
		"qr_code": qrCode,
		"issuer":  models.TOTPIssuer,
		"account": u.Username,
	})
}

// Enable2FAHandler verifies the code against the secret issued by
// Setup2FAHandler and enables 2FA.
func (h *Handler) Enable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, _ := h.currentOperator(r)

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	session, _ := h.Sessions.Get(r, sessionName)
	secret, _ := session.Values[pendingTOTPKey].(string)
	if secret == "" {
		writeError(w, http.StatusBadRequest, "Run 2FA setup first")
		return
	}
	if !models.VerifyTOTPCode(secret, req.Code) {
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	if err := h.Operators.UpdateOperatorTOTP(r.Context(), u.ID, secret, true); err != nil {
		h.logger().Error("enable 2fa", zap.Int("operator_id", u.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to enable 2FA")
		return
	}
	delete(session.Values, pendingTOTPKey)
	if err := session.Save(r, w); err != nil {
		h.logger().Warn("clear pending 2fa secret", zap.Int("operator_id", u.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA enabled successfully"})
}

// Disable2FAHandler turns 2FA off after checking a current code.
func (h *Handler) Disable2FAHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	u, _ := h.currentOperator(r)

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	op, err := h.Operators.GetOperator(r.Context(), u.ID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Operator not found")
		return
	}
	if !op.TOTPEnabled {
		writeError(w, http.StatusBadRequest, "2FA is not enabled")
		return
	}
	if !models.VerifyTOTPCode(op.TOTPSecret, req.Code) {
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	if err := h.Operators.UpdateOperatorTOTP(r.Context(), op.ID, "", false); err != nil {
		h.logger().Error("disable 2fa", zap.Int("operator_id", op.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to disable 2FA")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "2FA disabled successfully"})
}
