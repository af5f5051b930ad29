package intake

import (
	"encoding/json"
	"net/http"

	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	service Service
	log     *logger.Logger
}

func NewHandler(service Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log,
	}
}

type startRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Start", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	user := &model.User{
		ID:       req.UserID,
		Username: req.Username,
		Name:     req.Name,
	}

	reply, err := h.service.Start(r.Context(), user)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Start", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, reply); err != nil {
		h.log.Error("failed to write created response", "handler", "Start", "operation", "WriteCreated", "error", err)
	}
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.ExtractUserID(ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Advance", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	var input Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Advance", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	reply, err := h.service.Advance(r.Context(), userID, &input)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Advance", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, reply); err != nil {
		h.log.Error("failed to write success response", "handler", "Advance", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.ExtractUserID(ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Get", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	session, err := h.service.Get(r.Context(), userID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Get", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, session); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.ExtractUserID(ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Cancel(r.Context(), userID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/intake/start", h.Start)
	router.POST("/api/v1/intake/id/:id/input", h.Advance)
	router.GET("/api/v1/intake/id/:id", h.Get)
	router.DELETE("/api/v1/intake/id/:id", h.Cancel)
}
