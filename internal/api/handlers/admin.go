package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/investoscope/investoscope-backend/internal/api/response"
	"github.com/investoscope/investoscope-backend/internal/apperrors"
	"github.com/investoscope/investoscope-backend/internal/service"
)

// AdminHandler handles admin configuration endpoints
type AdminHandler struct {
	credentials *service.CredentialService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(credentials *service.CredentialService) *AdminHandler {
	return &AdminHandler{credentials: credentials}
}

// VendorKeysRequest carries vendor API keys to store. Empty fields leave the
// existing stored key untouched.
type VendorKeysRequest struct {
	TwelveDataKey   string `json:"twelveDataKey"`
	AlphaVantageKey string `json:"alphaVantageKey"`
}

// VendorKeysResponse confirms the keys were stored.
type VendorKeysResponse struct {
	OK bool `json:"ok"`
}

// UpdateVendorKeys handles PUT /api/admin/vendor-keys. Keys are stored
// encrypted in the settings table and take effect on the next vendor call.
func (h *AdminHandler) UpdateVendorKeys(w http.ResponseWriter, r *http.Request) {
	var req VendorKeysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TwelveDataKey == "" && req.AlphaVantageKey == "" {
		response.RespondError(w, http.StatusBadRequest, "no keys provided")
		return
	}

	if err := h.credentials.StoreKeys(r.Context(), req.TwelveDataKey, req.AlphaVantageKey); err != nil {
		if errors.Is(err, apperrors.ErrSecretsNotConfigured) {
			response.RespondError(w, http.StatusBadRequest, "encrypted key storage requires FERNET_KEY to be configured")
			return
		}
		response.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.RespondJSON(w, http.StatusOK, VendorKeysResponse{OK: true})
}
