package handlers

import (
	"net/http"

	"github.com/username/esopfolio/backend/src/logger"
	"github.com/username/esopfolio/backend/src/services"
	"github.com/username/esopfolio/backend/src/utils"
)

type GrantHandler struct {
	grantService services.GrantService
}

func NewGrantHandler(service services.GrantService) *GrantHandler {
	return &GrantHandler{grantService: service}
}

func (h *GrantHandler) HandleGetGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	batch, err := h.grantService.GetGrants(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	if writeNotModified(w, r, batch) {
		return
	}
	utils.SendJSON(w, batch, nil, http.StatusOK)
}

func (h *GrantHandler) HandleDeleteGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", "UNAUTHORIZED", http.StatusUnauthorized)
		return
	}

	deleted, err := h.grantService.DeleteGrants(r.Context(), userID)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("Grants deleted on request", "userID", userID, "deleted", deleted)
	utils.SendJSON(w, map[string]int64{"deleted": deleted}, nil, http.StatusOK)
}
