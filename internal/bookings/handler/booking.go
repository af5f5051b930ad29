package handler

import (
	"encoding/json"
	"net/http"

	"slotbook/internal/bookings/service"
	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type reserveRequest struct {
	UserID   int64        `json:"user_id"`
	Username string       `json:"username,omitempty"`
	Name     string       `json:"name,omitempty"`
	Date     string       `json:"date"`
	Time     string       `json:"time"`
	Intake   model.Intake `json:"intake"`
}

type receiptRequest struct {
	UserID     int64  `json:"user_id"`
	ReceiptRef string `json:"receipt_ref,omitempty"`
}

type rejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

type cancelRequest struct {
	Actor model.Actor `json:"actor"`
}

type unlockRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type unlockResponse struct {
	Outcome model.UnlockOutcome `json:"outcome"`
}

func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Reserve", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	user := &model.User{
		ID:       req.UserID,
		Username: req.Username,
		Name:     req.Name,
	}

	booking, err := h.service.Reserve(r.Context(), user, req.Date, req.Time, &req.Intake)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reserve", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Reserve", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) SubmitReceipt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req receiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "SubmitReceipt", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.SubmitReceipt(r.Context(), id, req.UserID, req.ReceiptRef); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "SubmitReceipt", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.Approve(r.Context(), id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Approve", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Reject", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Reject(r.Context(), id, req.Reason); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Reject", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Cancel", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if req.Actor != model.ActorUser && req.Actor != model.ActorAdmin {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("actor must be 'user' or 'admin'")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.Cancel(r.Context(), id, req.Actor); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Cancel", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Unlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Unlock", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if req.Date == "" || req.Time == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("Both 'date' and 'time' are required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Unlock", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	outcome, err := h.service.UnlockSlot(r.Context(), req.Date, req.Time)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Unlock", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, unlockResponse{Outcome: outcome}); err != nil {
		h.log.Error("failed to write success response", "handler", "Unlock", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	detail, err := h.service.GetDetail(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, detail); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ActiveForUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, err := httputil.ExtractUserID(ps.ByName("id"))
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ActiveForUser", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	bookings, err := h.service.ActiveForUser(r.Context(), userID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ActiveForUser", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, bookings); err != nil {
		h.log.Error("failed to write success response", "handler", "ActiveForUser", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings/reserve", h.Reserve)
	router.GET("/api/v1/bookings", h.GetAll)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/receipt", h.SubmitReceipt)
	router.POST("/api/v1/bookings/id/:id/approve", h.Approve)
	router.POST("/api/v1/bookings/id/:id/reject", h.Reject)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/slots/unlock", h.Unlock)
	router.GET("/api/v1/users/id/:id/bookings", h.ActiveForUser)
}
