package login

import "net/http"

const (
	MessageAuthorize     = "Redirecting to the identity provider"
	MessageAuthenticated = "User authenticated successfully"
)

// Response is the result of a successful flow step.
type Response[T any] struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       T      `json:"data"`
}

type AuthorizeData struct {
	AuthURL    string `json:"auth_url"`
	SessionID  string `json:"session_id"`
	UTMReferer string `json:"utm_referer"`
	UTMSource  string `json:"utm_source"`
}

func ok[T any](message string, data T) Response[T] {
	return Response[T]{StatusCode: http.StatusOK, Message: message, Data: data}
}
