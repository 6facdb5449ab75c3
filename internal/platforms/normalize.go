package platforms

import (
	"encoding/json"
	"fmt"
)

// Normalize is the single trust boundary between adapter outcomes and the
// dispatch path. A result claiming success without a platform post id is
// forced to failure rather than silently treated as published.
func Normalize(r Result) Result {
	if r.Success && r.PostID == "" {
		return failure(ErrorKindUnknown, "platform reported success without a post id")
	}
	if !r.Success {
		if r.Error == "" {
			r.Error = "unknown error"
		}
		if r.Kind == ErrorKindNone {
			r.Kind = ErrorKindUnknown
		}
	}
	return r
}

// graphError is the error envelope shared by the Facebook and Instagram
// Graph APIs.
type graphError struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// parseGraphError renders a Graph API error body into a deterministic,
// human-readable message, optionally enriched with a remediation hint keyed
// by error code. Malformed or empty envelopes embed the raw body for
// diagnosis.
func parseGraphError(body []byte, hints map[int]string) (string, ErrorKind) {
	var envelope graphError
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error.Message == "" {
		return fmt.Sprintf("unknown error: %s", string(body)), ErrorKindUnknown
	}

	e := envelope.Error
	msg := fmt.Sprintf("(#%d) %s", e.Code, e.Message)
	if hint, ok := hints[e.Code]; ok {
		msg += " | " + hint
	}
	return msg, graphErrorKind(e.Code)
}

func graphErrorKind(code int) ErrorKind {
	switch code {
	case 190, 102:
		return ErrorKindAuth
	case 3, 10, 200:
		return ErrorKindPermission
	case 4, 352:
		return ErrorKindRateLimit
	case 100, 9007:
		return ErrorKindPayload
	default:
		return ErrorKindUnknown
	}
}

// httpStatusMessage maps an HTTP status to a base error message when the
// response body carries nothing better.
func httpStatusMessage(code int, table map[int]string) string {
	if msg, ok := table[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error (HTTP %d)", code)
}

func httpStatusKind(code int) ErrorKind {
	switch code {
	case 401:
		return ErrorKindAuth
	case 403:
		return ErrorKindPermission
	case 429:
		return ErrorKindRateLimit
	case 400, 404, 410, 413:
		return ErrorKindPayload
	default:
		return ErrorKindUnknown
	}
}
