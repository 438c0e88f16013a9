package envelope

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
)

const (
	AuthenticationError = "Authentication Error"
	TokenExpiredError   = "Token Expired"
	ServerError         = "Server Error"
)

// Response is the uniform body written for every identity or tenant failure.
type Response struct {
	Item    any    `json:"item"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// OK wraps item in a successful envelope.
func OK(item any) Response {
	return Response{Item: item, Success: true}
}

// FromError maps err to a status code and a client-safe envelope. Authentication
// kinds become 401s carrying the error's own message. Everything else becomes a
// 500 that carries no detail of the cause.
func FromError(err error) (int, Response) {
	kind := apperrors.KindOf(err)
	switch {
	case kind == apperrors.KindExpiredToken:
		return http.StatusUnauthorized, Response{Message: apperrors.MessageOf(err, "Token expired"), Error: TokenExpiredError}
	case kind.Unauthenticated():
		return http.StatusUnauthorized, Response{Message: apperrors.MessageOf(err, "Unauthorized"), Error: AuthenticationError}
	default:
		return http.StatusInternalServerError, Response{Message: "Unable to process request", Error: ServerError}
	}
}

// Write encodes body as JSON with the given status.
func Write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes the envelope FromError builds for err.
func WriteError(w http.ResponseWriter, err error) {
	status, body := FromError(err)
	Write(w, status, body)
}
