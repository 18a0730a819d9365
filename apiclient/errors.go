package apiclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the closed set of failures the gateway reports. Downstream code
// switches on it instead of probing response fields.
type Kind int

const (
	Unauthorized Kind = iota + 1 // 401, handled centrally
	Forbidden                    // 403
	NotFound                     // 404
	BadRequest                   // any other 4xx
	ServerError                  // 5xx
	NetworkError                 // offline, timeout, circuit open
	ParseError                   // malformed response body
	Validation                   // client-side validation, never sent
)

func (k Kind) String() string {
	switch k {
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	case BadRequest:
		return "bad_request"
	case ServerError:
		return "server_error"
	case NetworkError:
		return "network_error"
	case ParseError:
		return "parse_error"
	case Validation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// HTTPStatus is the status the console server answers with for this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case BadRequest, Validation:
		return http.StatusBadRequest
	case NetworkError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// Error is the only error type produced at the transport boundary.
type Error struct {
	Kind     Kind
	Status   int // HTTP status, 0 when no response was received
	Method   string
	Path     string
	Message  string       // server supplied or internal detail
	UserText string       // overrides the default user-facing message
	Fields   []FieldError // Validation only
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("fleet api")
	if e.Method != "" {
		fmt.Fprintf(&b, ": %s %s", e.Method, e.Path)
	}
	fmt.Fprintf(&b, ": %s", e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil && e.Message == "" {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the user should be offered a retry.
func (e *Error) Retryable() bool {
	return e.Kind == ServerError || e.Kind == NetworkError
}

// UserMessage is the text shown in a toast or inline message.
func (e *Error) UserMessage() string {
	if e.UserText != "" {
		return e.UserText
	}
	switch e.Kind {
	case Unauthorized:
		return "Your session has expired. Please sign in again."
	case Forbidden:
		return "You do not have permission to perform this action."
	case NotFound:
		return "The requested item could not be found."
	case BadRequest:
		if e.Message != "" {
			return e.Message
		}
		return "The request was rejected by the server."
	case ServerError:
		return "The server ran into a problem. Please try again."
	case NetworkError:
		return "Unable to reach the server. Check your connection and try again."
	case Validation:
		if len(e.Fields) > 0 {
			return e.Fields[0].Message
		}
		return "Please correct the highlighted fields."
	default:
		return "Something went wrong. Please try again."
	}
}

// KindOf extracts the Kind of a gateway error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// UserMessage returns a displayable message for any error.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage()
	}
	return "Something went wrong. Please try again."
}

// kindForStatus maps a non-2xx status onto the taxonomy.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return Unauthorized
	case status == http.StatusForbidden:
		return Forbidden
	case status == http.StatusNotFound:
		return NotFound
	case status >= 500:
		return ServerError
	default:
		return BadRequest
	}
}
