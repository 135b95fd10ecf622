package reliability

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ent0n29/uplink/internal/uplink"
)

// Failure is the user-facing rendering of an exchange error.
type Failure struct {
	Kind       uplink.FailureKind `json:"kind"`
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	StatusCode int                `json:"status_code,omitempty"`
	Retryable  bool               `json:"retryable"`
}

const (
	MessageOffline   = "UPLINK OFFLINE. Connection to inference core severed."
	MessageCorrupted = "SIGNAL CORRUPTED. Subject response could not be decoded."
)

// Classify maps err to a Failure. Retryable marks failures where re-sending
// the same history is likely to help.
func Classify(err error) Failure {
	kind := uplink.KindOf(err)
	switch kind {
	case uplink.KindTransportUnavailable:
		return Failure{Kind: kind, Code: "uplink_offline", Message: MessageOffline, Retryable: true}
	case uplink.KindTransportError:
		var statusErr *uplink.StatusError
		errors.As(err, &statusErr)
		return Failure{
			Kind:       kind,
			Code:       "uplink_error",
			Message:    fmt.Sprintf("UPLINK ERROR %d %s.", statusErr.StatusCode, statusErr.Status),
			StatusCode: statusErr.StatusCode,
			Retryable:  IsRetryableHTTPStatus(statusErr.StatusCode),
		}
	case uplink.KindExtractionFailure, uplink.KindDecodeFailure:
		return Failure{Kind: kind, Code: "signal_corrupted", Message: MessageCorrupted, Retryable: true}
	case uplink.KindInvalidPayload:
		return Failure{Kind: kind, Code: "invalid_payload", Message: MessageCorrupted, Retryable: true}
	case uplink.KindInvalidInput:
		return Failure{Kind: kind, Code: "invalid_input", Message: "Nothing to transmit."}
	default:
		return Failure{Kind: uplink.KindUnknown, Code: "internal", Message: "UPLINK FAULT."}
	}
}

// HTTPStatus is the status the API answers with for a failure.
func (f Failure) HTTPStatus() int {
	switch f.Kind {
	case uplink.KindTransportUnavailable:
		return http.StatusServiceUnavailable
	case uplink.KindTransportError, uplink.KindExtractionFailure, uplink.KindDecodeFailure, uplink.KindInvalidPayload:
		return http.StatusBadGateway
	case uplink.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryableHTTPStatus reports whether an engine status is likely transient.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
