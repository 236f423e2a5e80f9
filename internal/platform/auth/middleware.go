package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type contextKey string

const principalKey contextKey = "principal"

// Claims is the JWT payload. Role is one of the Role constants; Department
// is the department id the user works in.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Name       string `json:"name,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// tokenFromRequest reads a bearer token from the Authorization header, or
// from the access_token query parameter for websocket upgrades, which cannot
// carry custom headers from browsers.
func tokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if tok := r.URL.Query().Get("access_token"); tok != "" {
			return tok, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// ParseToken validates tokenStr and returns its claims.
func ParseToken(cfg JWTConfig, tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return cfg.SigningKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if !ValidRole(claims.Role) {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

// IssueToken signs a token for the given principal.
func IssueToken(cfg JWTConfig, p Principal, ttl time.Duration) (string, error) {
	if !ValidRole(p.Role) {
		return "", fmt.Errorf("unknown role %q", p.Role)
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:       p.Role,
		Department: p.Department,
		Name:       p.Name,
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.SigningKey)
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr, err := tokenFromRequest(c.Request())
			if err != nil {
				return err
			}

			claims, err := ParseToken(cfg, tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
			}

			setPrincipal(c, Principal{
				UserID:     claims.Subject,
				Name:       claims.Name,
				Role:       claims.Role,
				Department: claims.Department,
			})
			return next(c)
		}
	}
}

// DevPrincipal is the identity given to unauthenticated requests in
// development mode.
var DevPrincipal = Principal{UserID: "dev-user", Name: "Developer", Role: RoleAdmin}

// DevAuthMiddleware lets requests without credentials through as
// DevPrincipal. Requests that do carry a token are validated, so role and
// department restrictions can still be exercised locally.
func DevAuthMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	strict := JWTMiddleware(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withToken := strict(next)
		return func(c echo.Context) error {
			r := c.Request()
			if r.Header.Get("Authorization") == "" && r.URL.Query().Get("access_token") == "" {
				setPrincipal(c, DevPrincipal)
				return next(c)
			}
			return withToken(c)
		}
	}
}

func setPrincipal(c echo.Context, p Principal) {
	c.Set("user_id", p.UserID)
	ctx := WithPrincipal(c.Request().Context(), p)
	c.SetRequest(c.Request().WithContext(ctx))
}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated principal, or the zero
// Principal when there is none.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey).(Principal)
	return p
}
