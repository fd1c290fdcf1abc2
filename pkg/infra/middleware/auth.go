package middleware

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/kart-io/logger"

	jwtopts "github.com/kart-io/sentinel-rag/pkg/options/jwt"
	"github.com/kart-io/sentinel-rag/pkg/utils/errors"
	"github.com/kart-io/sentinel-rag/pkg/utils/response"
)

// ContextKeyCaller is the gin context key holding the authenticated caller id.
const ContextKeyCaller = "caller"

const bearerPrefix = "bearer "

type callerKey struct{}

var (
	errTokenExpired  = stderrors.New("token expired")
	errTokenNotValid = stderrors.New("token not valid yet")
	errWrongIssuer   = stderrors.New("unexpected issuer")
	errWrongAudience = stderrors.New("unexpected audience")
	errMissingSub    = stderrors.New("token has no subject")
)

// Auth resolves the caller identity.
//
// A request without credentials continues anonymously with an empty caller;
// handlers that need an identity reject it themselves. A request carrying an
// invalid bearer token is rejected with 401. When auth is disabled the caller
// id is read from the configured identity header.
func Auth(opts *jwtopts.Options) gin.HandlerFunc {
	if opts == nil {
		opts = jwtopts.NewOptions()
	}
	if opts.DisableAuth {
		header := opts.IdentityHeader
		return func(c *gin.Context) {
			setCaller(c, strings.TrimSpace(c.GetHeader(header)))
			c.Next()
		}
	}

	v := newVerifier(opts)
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}
		sub, err := v.verify(raw)
		if err != nil {
			logAuthFailure(c, raw, err)
			response.Fail(c, errors.ErrInvalidToken.WithCause(err))
			return
		}
		setCaller(c, sub)
		c.Next()
	}
}

// CallerFrom returns the caller id resolved by Auth, or "".
func CallerFrom(c *gin.Context) string {
	return c.GetString(ContextKeyCaller)
}

// CallerFromContext returns the caller id stored in ctx, or "".
func CallerFromContext(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey{}).(string)
	return caller
}

func setCaller(c *gin.Context, caller string) {
	if caller == "" {
		return
	}
	c.Set(ContextKeyCaller, caller)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), callerKey{}, caller))
}

func bearerToken(header string) (string, bool) {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

type verifier struct {
	parser   *jwt.Parser
	key      []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

func newVerifier(opts *jwtopts.Options) *verifier {
	return &verifier{
		// Registered claims are checked below so that the leeway applies.
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{opts.SigningMethod}), jwt.WithoutClaimsValidation()),
		key:      []byte(opts.Key),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
		now:      time.Now,
	}
}

func (v *verifier) verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}); err != nil {
		return "", err
	}

	now := v.now()
	if !claims.VerifyExpiresAt(now.Add(-v.leeway), false) {
		return "", errTokenExpired
	}
	if !claims.VerifyNotBefore(now.Add(v.leeway), false) {
		return "", errTokenNotValid
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return "", errWrongIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return "", errWrongAudience
	}
	if claims.Subject == "" {
		return "", errMissingSub
	}
	return claims.Subject, nil
}

func logAuthFailure(c *gin.Context, token string, err error) {
	prefix := token
	if len(prefix) > 10 {
		prefix = prefix[:10] + "..."
	}
	logger.Warnw("Authentication failed",
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
		"request_id", c.GetString(response.RequestIDKey),
		"token_prefix", prefix,
		"error", err.Error(),
	)
}
