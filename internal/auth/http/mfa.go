package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inkwellhq/inkwell/internal/auth/service"
	"github.com/inkwellhq/inkwell/pkg/httpx"
	"github.com/inkwellhq/inkwell/pkg/slogx"
)

// MFAHandler handles the two-factor auth management endpoints. All of them
// run behind the session middleware.
type MFAHandler struct {
	MFAService  *service.MFAService
	AuthService *service.AuthService
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

// HandleEnroll handles POST /v1/mfa/totp/enroll. Generates a secret and
// otpauth URL; two-factor auth stays off until the code is confirmed.
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromContext(ctx)

	user, err := h.AuthService.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		log.Error("failed to load user", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	enrollment, err := h.MFAService.Enroll(ctx, userID, user.Email)
	if err != nil {
		if errors.Is(err, service.ErrTwoFactorEnabled) {
			httpx.WriteError(w, http.StatusBadRequest, "two_factor_enabled", "Two-factor auth is already enabled")
			return
		}
		log.Error("totp enrolment failed", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

// HandleEnable handles POST /v1/mfa/totp/enable. Confirms the first code and
// returns the backup codes; this is the only time they are shown.
func (h *MFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromContext(ctx)

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	codes, err := h.MFAService.Enable(ctx, userID, req.Code, httpx.IPKeyExtractor(r), r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorNotEnrolled):
			httpx.WriteError(w, http.StatusBadRequest, "not_enrolled", "Enroll before enabling two-factor auth")
		case errors.Is(err, service.ErrTwoFactorEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "two_factor_enabled", "Two-factor auth is already enabled")
		case errors.Is(err, service.ErrTwoFactorInvalid):
			httpx.WriteError(w, http.StatusBadRequest, "two_factor_invalid", "Invalid two-factor code")
		default:
			log.Error("failed to enable two-factor", "user_id", userID, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"enabled":      true,
		"backup_codes": codes,
	})
}

// HandleDisable handles POST /v1/mfa/totp/disable.
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromContext(ctx)

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	if err := h.MFAService.Disable(ctx, userID, req.Code, httpx.IPKeyExtractor(r), r.UserAgent()); err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorNotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "not_enabled", "Two-factor auth is not enabled")
		case errors.Is(err, service.ErrTwoFactorInvalid):
			httpx.WriteError(w, http.StatusBadRequest, "two_factor_invalid", "Invalid two-factor code")
		default:
			log.Error("failed to disable two-factor", "user_id", userID, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"enabled": false})
}

// HandleRegenerateBackupCodes handles POST /v1/mfa/backup-codes.
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromContext(ctx)

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}

	codes, err := h.MFAService.RegenerateBackupCodes(ctx, userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTwoFactorNotEnabled):
			httpx.WriteError(w, http.StatusBadRequest, "not_enabled", "Two-factor auth is not enabled")
		case errors.Is(err, service.ErrTwoFactorInvalid):
			httpx.WriteError(w, http.StatusBadRequest, "two_factor_invalid", "Invalid two-factor code")
		default:
			log.Error("failed to regenerate backup codes", "user_id", userID, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"backup_codes": codes})
}

// HandleStatus handles GET /v1/mfa/status.
func (h *MFAHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	userID := httpx.UserIDFromContext(ctx)

	enabled, err := h.MFAService.Enabled(ctx, userID)
	if err != nil {
		log.Error("failed to load two-factor status", "user_id", userID, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		return
	}

	remaining := 0
	if enabled {
		remaining, err = h.MFAService.BackupCodesRemaining(ctx, userID)
		if err != nil {
			log.Error("failed to count backup codes", "user_id", userID, "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"enabled":                enabled,
		"backup_codes_remaining": remaining,
	})
}
