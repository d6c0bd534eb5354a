package auth

import (
	"context"
	"strings"

	"github.com/adeilh/go-trakt/httpx"
)

// DefaultAuthPath is the endpoint that trades a challenge proof for a token.
const DefaultAuthPath = "/auth"

// authRequest and authResponse mirror the wire format of POST /auth.
type authRequest struct {
	Token string `json:"token"`
}

type authResponse struct {
	Success   bool   `json:"success"`
	AuthToken string `json:"auth_token,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Message   string `json:"message,omitempty"`
}

// HTTPExchanger posts challenge proofs to the listing service.
type HTTPExchanger struct {
	client *httpx.Client
	path   string
}

// NewHTTPExchanger builds an exchanger posting to path (DefaultAuthPath when empty).
func NewHTTPExchanger(client *httpx.Client, path string) *HTTPExchanger {
	if path == "" {
		path = DefaultAuthPath
	}
	return &HTTPExchanger{client: client, path: path}
}

func (x *HTTPExchanger) Exchange(ctx context.Context, proof string) (Token, error) {
	var (
		body    authResponse
		failure authResponse
	)
	_, err := x.client.Post(ctx, x.path, authRequest{Token: proof}, &body, httpx.WithErrorResult(&failure))
	if err != nil {
		if se, ok := httpx.AsStatusError(err); ok {
			msg := strings.TrimSpace(failure.Message)
			if msg == "" {
				msg = se.Status
			}
			return Token{}, &AuthenticationError{Op: "exchange", StatusCode: se.StatusCode, Message: msg, Err: err}
		}
		return Token{}, &AuthenticationError{Op: "exchange", Err: err}
	}

	if !body.Success {
		msg := strings.TrimSpace(body.Message)
		if msg == "" {
			msg = "authentication rejected"
		}
		return Token{}, &AuthenticationError{Op: "exchange", Message: msg}
	}
	if body.AuthToken == "" {
		return Token{}, &AuthenticationError{Op: "exchange", Message: "response carried no token"}
	}

	exp, err := parseExpiry(body.ExpiresAt)
	if err != nil {
		return Token{}, &AuthenticationError{Op: "exchange", Message: "malformed token expiry", Err: err}
	}
	return Token{Value: body.AuthToken, ExpiresAt: exp}, nil
}
