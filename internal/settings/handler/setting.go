package handler

import (
	"encoding/json"
	"net/http"

	"slotbook/internal/settings/service"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type SettingHandler struct {
	service service.SettingService
	log     *logger.Logger
}

func NewSettingHandler(service service.SettingService, log *logger.Logger) *SettingHandler {
	return &SettingHandler{
		service: service,
		log:     log,
	}
}

type priceRequest struct {
	Price int64 `json:"price"`
}

type priceResponse struct {
	Price int64 `json:"price"`
}

type adminChatRequest struct {
	ChatID int64 `json:"chat_id"`
}

func (h *SettingHandler) GetPrice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	price, err := h.service.GetPrice(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetPrice", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, priceResponse{Price: price}); err != nil {
		h.log.Error("failed to write success response", "handler", "GetPrice", "operation", "WriteSuccess", "error", err)
	}
}

func (h *SettingHandler) SetPrice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SetPrice", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.SetPrice(r.Context(), req.Price); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SetPrice", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SettingHandler) SetAdminChat(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req adminChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SetAdminChat", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.SetAdminChatID(r.Context(), req.ChatID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SetAdminChat", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *SettingHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/settings/price", h.GetPrice)
	router.PUT("/api/v1/settings/price", h.SetPrice)
	router.PUT("/api/v1/settings/admin-chat", h.SetAdminChat)
}
