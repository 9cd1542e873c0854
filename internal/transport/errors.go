package transport

import (
	"context"
	"errors"
	"net/http"

	"marketingclass-be/internal/cart"
	"marketingclass-be/internal/course"
	"marketingclass-be/internal/logger"
	"marketingclass-be/internal/order"
	"marketingclass-be/internal/payment"
	"marketingclass-be/internal/user"
	"marketingclass-be/internal/utils"

	"go.uber.org/zap"
)

func statusCode(err error) int {
	switch {
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, payment.ErrStatusNotFound),
		errors.Is(err, course.ErrCourseNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden

	case errors.Is(err, order.ErrUnauthorized),
		errors.Is(err, user.ErrUserNotAuthenticated):
		return http.StatusUnauthorized

	case errors.Is(err, payment.ErrIllegalTransition),
		errors.Is(err, payment.ErrConcurrentUpdate),
		errors.Is(err, payment.ErrOrderNotPayable),
		errors.Is(err, order.ErrOrderNotPending),
		errors.Is(err, order.ErrAlreadyOwned):
		return http.StatusConflict

	case errors.Is(err, payment.ErrInvalidStatus),
		errors.Is(err, payment.ErrVerificationRequired),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrUnknownCourse),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, cart.ErrInvalidItem):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError maps a service error to its status code. Unknown errors are
// logged and hidden from the client.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		logger.FromCtx(ctx).Error("request failed", zap.Error(err))
		utils.WriteJSONError(w, "internal server error", code)
		return
	}
	utils.WriteJSONError(w, err.Error(), code)
}
