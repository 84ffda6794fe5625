package orders

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"pointstock/internal/httputil"
	"pointstock/internal/storage"
	"pointstock/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type placeOrderRequest struct {
	StockName string `json:"stock_name"`
	StockCode string `json:"stock_code"`
	Qty       int64  `json:"qty"`
	Price     string `json:"price"`
	Status    string `json:"status"`
}

func (h *Handler) parsePlace(w http.ResponseWriter, r *http.Request) (PlaceRequest, bool) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return PlaceRequest{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
		return PlaceRequest{}, false
	}
	status := types.OrderStatus(req.Status)
	if req.Status == "" {
		status = types.OrderStatusPending
	}
	return PlaceRequest{
		StockName: strings.TrimSpace(req.StockName),
		StockCode: strings.TrimSpace(req.StockCode),
		Qty:       req.Qty,
		Price:     price,
		Status:    status,
	}, true
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request, userID string) {
	req, ok := h.parsePlace(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Buy(r.Context(), userID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request, userID string) {
	req, ok := h.parsePlace(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Sell(r.Context(), userID, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) CancelBuy(w http.ResponseWriter, r *http.Request, userID string) {
	o, err := h.svc.CancelBuy(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) CancelSell(w http.ResponseWriter, r *http.Request, userID string) {
	o, err := h.svc.CancelSell(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func pageFromQuery(r *http.Request) storage.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	take, _ := strconv.Atoi(q.Get("take"))
	return storage.Page{Page: page, Take: take, Desc: q.Get("order") != "asc"}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	res, err := h.svc.ListOrders(r.Context(), userID, pageFromQuery(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request, userID string) {
	res, err := h.svc.ListStockOrders(r.Context(), userID, chi.URLParam(r, "code"), pageFromQuery(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.svc.ListPendingOrders(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Holdings(w http.ResponseWriter, r *http.Request, userID string) {
	list, err := h.svc.ListHoldings(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) Holding(w http.ResponseWriter, r *http.Request, userID string) {
	v, err := h.svc.GetHolding(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// Sweep is the internal endpoint the scheduler and operators hit to
// cancel every pending order. It reports counts instead of failing.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.svc.RunSweep(r.Context()))
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, ErrHoldingNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrAccountMissing),
		errors.Is(err, ErrNoPosition),
		errors.Is(err, ErrInsufficientHoldings),
		errors.Is(err, ErrOverReserved),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInvalidOrder):
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "internal error"})
	}
}
