package workflow

import (
	"errors"

	"tradietalk-voice-service/internal/service/extraction"
	"tradietalk-voice-service/internal/service/llm"
	"tradietalk-voice-service/internal/service/permission"
	"tradietalk-voice-service/internal/service/stt"
)

// Error kinds.
const (
	KindPermission = "permission"
	KindCapture    = "capture"
	KindValidation = "validation"
	KindGateway    = "gateway"
	KindParse      = "parse"
	KindUnknown    = "unknown"
)

// KindOf classifies an error that ended an attempt.
func KindOf(err error) string {
	var (
		dErr *permission.DeniedError
		cErr *stt.CaptureError
		vErr *extraction.ValidationError
		pErr *extraction.ParseError
		gErr *llm.GatewayError
	)
	switch {
	case errors.As(err, &dErr):
		return KindPermission
	case errors.As(err, &cErr):
		return KindCapture
	case errors.As(err, &vErr):
		return KindValidation
	case errors.As(err, &pErr):
		return KindParse
	case errors.As(err, &gErr):
		return KindGateway
	default:
		return KindUnknown
	}
}

// UserMessage is the short text shown to the user for err.
// Gateway and parse failures read the same.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindPermission:
		return "Microphone access is required for voice recording"
	case KindCapture:
		var cErr *stt.CaptureError
		errors.As(err, &cErr)
		if cErr.Code == stt.CodeNotSupported {
			return "Speech recognition is not supported in this browser"
		}
		return "Speech recognition error: " + cErr.Code
	case KindValidation:
		return "Voice text is required"
	default:
		return "Failed to process voice input. Please try again."
	}
}
