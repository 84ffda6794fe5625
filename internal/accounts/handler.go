package accounts

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"pointstock/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}

// Create provisions the point account. Registration already does this;
// the endpoint is idempotent and returns the existing account.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request, userID string) {
	acc, err := h.svc.Ensure(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, acc)
}

type depositRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request, userID string) {
	var req depositRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	acc, err := h.svc.Deposit(r.Context(), userID, amount)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}
