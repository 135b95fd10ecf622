package uplink

import "errors"

// FailureKind is the diagnostic category of an Exchange failure.
type FailureKind string

const (
	KindNone                 FailureKind = ""
	KindTransportUnavailable FailureKind = "transport_unavailable"
	KindTransportError       FailureKind = "transport_error"
	KindExtractionFailure    FailureKind = "extraction_failure"
	KindDecodeFailure        FailureKind = "decode_failure"
	KindInvalidPayload       FailureKind = "invalid_payload"
	KindInvalidInput         FailureKind = "invalid_input"
	KindUnknown              FailureKind = "unknown"
)

func KindOf(err error) FailureKind {
	if err == nil {
		return KindNone
	}
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return KindTransportError
	case errors.Is(err, ErrTransportUnavailable):
		return KindTransportUnavailable
	case errors.Is(err, ErrExtractionFailure):
		return KindExtractionFailure
	case errors.Is(err, ErrSignalCorrupted):
		return KindDecodeFailure
	case errors.Is(err, ErrInvalidPayload):
		return KindInvalidPayload
	case errors.Is(err, ErrEmptyInput):
		return KindInvalidInput
	default:
		return KindUnknown
	}
}
