package recordapi

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/mpalumbo7/receipt-parser/internal/retry"
)

// Classify maps a record API error to a retry class. Client errors other
// than 408 and 429 are permanent; everything else, including transport
// failures, is worth another attempt.
func Classify(err error) retry.Class {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code >= 500:
			return retry.Transient
		case statusErr.Code == http.StatusRequestTimeout,
			statusErr.Code == http.StatusTooManyRequests:
			return retry.Transient
		default:
			return retry.Permanent
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.Transient
	}
	return retry.Transient
}
