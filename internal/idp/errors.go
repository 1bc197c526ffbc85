package idp

import "fmt"

// AuthError is raised when the admin API rejects the current token with a
// 401/403 even after one re-authentication attempt.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("idp: authentication failed (status %d): %s", e.StatusCode, e.Message)
}

// RequestError is raised for any transport failure or non-2xx admin
// response that is not an authentication failure.
type RequestError struct {
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("idp: request failed: %s", e.Message)
	}

	return fmt.Sprintf("idp: request failed (status %d): %s", e.StatusCode, e.Message)
}
