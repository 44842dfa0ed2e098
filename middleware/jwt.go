package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bjaus/switchboard"
)

type routeKey string

// AuthRequired is the route value that opts a route into bearer token
// authentication.
//
//	h.Get("/me", me, switchboard.WithValue(middleware.AuthRequired, true))
const AuthRequired routeKey = "auth-required"

// ClaimsKey holds the verified token claims in request metadata.
var ClaimsKey = switchboard.Key[jwt.MapClaims]("claims")

// JWTConfig configures token verification.
type JWTConfig struct {
	// Secret is the HMAC signing key.
	Secret []byte

	// Issuer, when set, must equal the iss claim.
	Issuer string

	// Audience, when set, must be in the aud claim.
	Audience string

	// Leeway is the clock skew tolerated for time based claims.
	Leeway time.Duration
}

// JWT returns middleware that verifies HMAC signed bearer tokens on
// routes marked with AuthRequired. Missing or invalid tokens are
// unauthorized. The verified claims are stored under ClaimsKey.
func JWT(cfg JWTConfig) switchboard.Middleware {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(ctx context.Context, req *switchboard.Request, route *switchboard.Route) (switchboard.Outcome, error) {
		if required, _ := route.Value(AuthRequired).(bool); !required {
			return switchboard.Continue(), nil
		}

		token, ok := strings.CutPrefix(req.Header("authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			return switchboard.Outcome{}, switchboard.NewUnauthorized("Missing bearer token")
		}

		claims := jwt.MapClaims{}
		_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return cfg.Secret, nil
		})
		if err != nil {
			return switchboard.Outcome{}, switchboard.NewUnauthorized("Invalid bearer token").Wrap(err)
		}

		ClaimsKey.Set(req.Metadata(), claims)
		return switchboard.Continue(), nil
	}
}

// Subject returns the sub claim of the verified token.
func Subject(req *switchboard.Request) string {
	claims, ok := ClaimsKey.Get(req.Metadata())
	if !ok {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}
