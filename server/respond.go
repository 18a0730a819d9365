package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/apiclient"
	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/querycache"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Fields  []apiclient.FieldError `json:"fields,omitempty"`
	// Location is where to sign in again after the backend ended the session.
	Location string `json:"location,omitempty"`
}

// resultBody wraps a cached read. Error and Message are set when Data is the
// last known value served after a failed refetch.
type resultBody struct {
	Data      any    `json:"data"`
	Stale     bool   `json:"stale"`
	FromCache bool   `json:"fromCache"`
	Error     string `json:"error,omitempty"`
	Message   string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response body")
	}
}

// writeError maps err onto a status and a {error, message} body. A 401 also
// carries the login location for the request.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusUnauthorized {
		body.Location = s.guard.LoginURL(r.URL.RequestURI())
	}
	writeJSON(w, status, body)
}

func errorResponse(err error) (int, errorBody) {
	var apiErr *apiclient.Error
	switch {
	case apperrors.As(err, &apiErr):
		return apiErr.Kind.HTTPStatus(), errorBody{Error: apiErr.Kind.String(), Message: apiErr.UserMessage(), Fields: apiErr.Fields}
	case apperrors.Is(err, apperrors.ErrNotificationNotFound), apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: apiclient.NotFound.String(), Message: "The requested item could not be found."}
	case apperrors.Is(err, apperrors.ErrNoAuthenticator), apperrors.Is(err, apperrors.ErrUnsupported):
		return http.StatusServiceUnavailable, errorBody{Error: "unavailable", Message: "This feature is not available right now."}
	default:
		log.Error().Err(err).Msg("unclassified error")
		return http.StatusInternalServerError, errorBody{Error: "internal_error", Message: apiclient.UserMessage(err)}
	}
}

func writeResult[T any](s *Server, w http.ResponseWriter, r *http.Request, res querycache.Result[T]) {
	if res.Err != nil && !res.Stale {
		s.writeError(w, r, res.Err)
		return
	}
	body := resultBody{Data: res.Data, Stale: res.Stale, FromCache: res.FromCache}
	if res.Err != nil {
		_, e := errorResponse(res.Err)
		body.Error, body.Message = e.Error, e.Message
	}
	writeJSON(w, http.StatusOK, body)
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badInput("body", "readable", "The request body could not be read.")
	}
	if len(data) == 0 {
		return badInput("body", "required", "A request body is required.")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badInput("body", "json", "The request body is not valid JSON.")
	}
	return nil
}

func badInput(field, tag, message string) error {
	return &apiclient.Error{
		Kind:    apiclient.Validation,
		Message: "validation failed",
		Fields:  []apiclient.FieldError{{Field: field, Tag: tag, Message: message}},
	}
}

// queryParams reads typed values out of the URL query, remembering the
// first parse failure.
type queryParams struct {
	r   *http.Request
	err error
}

func params(r *http.Request) *queryParams {
	return &queryParams{r: r}
}

func (q *queryParams) String(name string) string {
	return q.r.URL.Query().Get(name)
}

func (q *queryParams) Float(name string) float64 {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil && q.err == nil {
		q.err = badInput(name, "number", name+" must be a number")
	}
	return v
}

func (q *queryParams) Int(name string, fallback int) int {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil && q.err == nil {
		q.err = badInput(name, "number", name+" must be a whole number")
	}
	return v
}

func (q *queryParams) Err() error {
	return q.err
}
