package transport

import (
	"encoding/json"
	"net/http"

	"marketingclass-be/internal/metrics"
	"marketingclass-be/internal/order"
	"marketingclass-be/internal/payment"
	"marketingclass-be/internal/user"
	"marketingclass-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type Handler struct {
	orders   order.Service
	payments payment.Service
	users    user.Service
	metrics  *metrics.PaymentMetrics
	upgrader websocket.Upgrader
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		orders:   d.Orders,
		payments: d.Payments,
		users:    d.Users,
		metrics:  d.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin(d.CORSOrigin),
		},
	}
}

type simulateRequest struct {
	Method string `json:"method"`
}

func identity(r *http.Request) utils.Identity {
	id, _ := utils.IdentityFromContext(r.Context())
	return id
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.WriteJSONError(w, "invalid json body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in order.CreateOrderInput
	if !decode(w, r, &in) {
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), identity(r), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListUserOrders(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	utils.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrderForUser(r.Context(), chi.URLParam(r, "orderId"), identity(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	st, err := h.payments.CancelOrder(r.Context(), chi.URLParam(r, "orderId"), identity(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

// canView loads the order only to apply the owner-or-admin rule and writes
// the error response when the caller may not see it.
func (h *Handler) canView(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := chi.URLParam(r, "orderId")
	if _, err := h.orders.GetOrderForUser(r.Context(), orderID, identity(r)); err != nil {
		writeError(r.Context(), w, err)
		return "", false
	}
	return orderID, true
}

func (h *Handler) GetPaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.canView(w, r)
	if !ok {
		return
	}

	st, err := h.payments.CheckPaymentStatus(r.Context(), orderID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var upd payment.StatusUpdate
	if !decode(w, r, &upd) {
		return
	}

	st, err := h.payments.UpdatePaymentStatus(r.Context(), chi.URLParam(r, "orderId"), upd, identity(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

// SimulatePayment charges the order through the gateway. A declined charge is
// a normal outcome and comes back as a 200 with a failed status.
func (h *Handler) SimulatePayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.canView(w, r)
	if !ok {
		return
	}

	var req simulateRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	st, err := h.payments.SimulatePaymentVerification(r.Context(), orderID, req.Method)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) AddVerification(w http.ResponseWriter, r *http.Request) {
	var in payment.VerificationInput
	if !decode(w, r, &in) {
		return
	}

	st, err := h.payments.AddPaymentVerification(r.Context(), chi.URLParam(r, "orderId"), in, identity(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, st)
}

func (h *Handler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.payments.GetPaymentVerifications(r.Context(), chi.URLParam(r, "orderId"), identity(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if list == nil {
		list = []payment.Verification{}
	}
	utils.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) GetInstructions(w http.ResponseWriter, r *http.Request) {
	steps, err := h.payments.GetInstructions(r.Context(), chi.URLParam(r, "orderId"), identity(r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string][]string{"instructions": steps})
}

func (h *Handler) MyCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.users.PurchasedCourses(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string][]string{"courseIds": courses})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) CourseAccess(w http.ResponseWriter, r *http.Request) {
	courseID := chi.URLParam(r, "courseId")
	ok, err := h.users.HasAccess(r.Context(), identity(r).UserID, courseID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]any{"courseId": courseID, "hasAccess": ok})
}
