package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"DiaBot/pkg/chat"
	tokenstore "DiaBot/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ContextIdentityKey = "current_identity"
	ContextJTIKey      = "current_jti"
	ContextTokenExpKey = "current_token_exp"
)

var (
	errMissingHeader = errors.New("missing authorization header")
	errBadHeader     = errors.New("invalid authorization header")
	errBadToken      = errors.New("invalid token")
	errRevoked       = errors.New("token has been revoked (logout)")
	errBadSubject    = errors.New("invalid subject in token")
)

// Authenticator issues and checks HS256 bearer tokens.
type Authenticator struct {
	secret   []byte
	lifetime time.Duration
	revoked  *tokenstore.Store
}

func NewAuthenticator(secret string, lifetime time.Duration, revoked *tokenstore.Store) *Authenticator {
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), lifetime: lifetime, revoked: revoked}
}

// Issue signs a token for id.
func (a *Authenticator) Issue(id chat.Identity) (string, error) {
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(id.UserID), 10),
		"email": id.Email,
		"exp":   time.Now().Add(a.lifetime).Unix(),
		"jti":   uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

type TokenInfo struct {
	Identity chat.Identity
	JTI      string
	Exp      time.Time
}

// Parse validates tokenStr and extracts the caller identity.
func (a *Authenticator) Parse(tokenStr string) (TokenInfo, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return TokenInfo{}, errBadToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenInfo{}, errBadToken
	}

	jti, _ := claims["jti"].(string)
	if a.revoked != nil && a.revoked.IsRevoked(jti) {
		return TokenInfo{}, errRevoked
	}

	var sub uint64
	switch v := claims["sub"].(type) {
	case string:
		sub, err = strconv.ParseUint(v, 10, 64)
	case float64:
		// jwt lib may parse numeric as float64
		sub = uint64(v)
	default:
		err = errBadSubject
	}
	if err != nil || sub == 0 {
		return TokenInfo{}, errBadSubject
	}

	info := TokenInfo{JTI: jti}
	info.Identity.UserID = uint(sub)
	info.Identity.Email, _ = claims["email"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.Exp = exp.Time
	}
	return info, nil
}

// Revoke blacklists the token used by the current request.
func (a *Authenticator) Revoke(c *gin.Context) {
	jti := c.GetString(ContextJTIKey)
	if jti == "" || a.revoked == nil {
		return
	}
	exp, _ := c.Get(ContextTokenExpKey)
	t, _ := exp.(time.Time)
	a.revoked.Revoke(jti, t)
}

func bearer(c *gin.Context) (string, error) {
	auth := c.GetHeader("Authorization")
	if auth == "" {
		return "", errMissingHeader
	}
	parts := strings.Fields(auth)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errBadHeader
	}
	return parts[1], nil
}

func (a *Authenticator) setContext(c *gin.Context, info TokenInfo) {
	id := info.Identity
	c.Set(ContextIdentityKey, &id)
	c.Set(ContextJTIKey, info.JTI)
	c.Set(ContextTokenExpKey, info.Exp)
}

// Required rejects requests without a valid bearer token.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearer(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		info, err := a.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		a.setContext(c, info)
		c.Next()
	}
}

// Optional lets anonymous requests through but still rejects a bad token.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearer(c)
		if errors.Is(err, errMissingHeader) {
			c.Next()
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		info, err := a.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}
		a.setContext(c, info)
		c.Next()
	}
}

// CurrentIdentity returns the caller identity, or nil for anonymous requests.
func CurrentIdentity(c *gin.Context) *chat.Identity {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*chat.Identity)
	return id
}
