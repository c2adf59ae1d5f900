package websocket

import (
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quocdatk18/appchat-sub000/internal/utils"
)

// Principal is the identity a connection was authenticated as. Every
// register event on that connection must name the same user.
type Principal struct {
	UserID   string
	Username string
}

type AuthenticatorFunc func(r *http.Request) (Principal, error)

type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// JWTWebSocketAuth verifies a token issued by the identity provider.
func JWTWebSocketAuth(publicKey *rsa.PublicKey) AuthenticatorFunc {
	return func(r *http.Request) (Principal, error) {
		token := getTokenFromRequest(r)
		if token == "" {
			return Principal{}, &AuthError{Message: "missing access token"}
		}

		claims, err := utils.ParseAndVerifySign(token, publicKey)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				// the handshake cannot refresh; the client reconnects with a new token
				return Principal{}, &AuthError{Message: "token expired, please refresh and reconnect"}
			}
			return Principal{}, &AuthError{Message: "invalid token"}
		}

		return Principal{UserID: claims.Subject, Username: claims.Username}, nil
	}
}

// TrustedHeaderAuth takes the user id from a header set by an upstream gateway.
func TrustedHeaderAuth(header string) AuthenticatorFunc {
	return func(r *http.Request) (Principal, error) {
		userID := strings.TrimSpace(r.Header.Get(header))
		if userID == "" {
			userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if userID == "" {
			return Principal{}, &AuthError{Message: "user id is required"}
		}
		return Principal{UserID: userID}, nil
	}
}

func getTokenFromRequest(r *http.Request) string {
	// Option 1: Authorization header
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// Option 2: Query parameter
	token := r.URL.Query().Get("token")
	if token != "" {
		return token
	}

	// Option 3: Cookie
	cookie, err := r.Cookie("access_token")
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}
