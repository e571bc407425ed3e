package middleware

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sanskarm7/JobCATGmail/pkg/apperr"
	"github.com/sanskarm7/JobCATGmail/pkg/logger"
)

// AuthConfig configures bearer token validation.
// HS256 tokens are checked against Secret; RS/ES tokens against the JWKS at JWKSURL.
type AuthConfig struct {
	Secret  string
	JWKSURL string
	Redis   *redis.Client // optional revocation list
}

// Authenticator validates bearer tokens and stores the subject as "user_id".
type Authenticator struct {
	secret    []byte
	jwks      *JWKSCache
	blacklist *redis.Client
}

const blacklistPrefix = "jobcat:token:revoked:"

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	a := &Authenticator{secret: []byte(cfg.Secret), blacklist: cfg.Redis}
	if cfg.JWKSURL != "" {
		a.jwks = &JWKSCache{url: cfg.JWKSURL, ttl: 10 * time.Minute, client: &http.Client{Timeout: 10 * time.Second}}
	}
	return a
}

// RevokeToken blacklists a token id until it would have expired anyway.
func (a *Authenticator) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if a.blacklist == nil {
		return nil
	}
	return a.blacklist.Set(ctx, blacklistPrefix+tokenID, "1", ttl).Err()
}

func (a *Authenticator) isRevoked(ctx context.Context, tokenID string) bool {
	if a.blacklist == nil || tokenID == "" {
		return false
	}
	n, err := a.blacklist.Exists(ctx, blacklistPrefix+tokenID).Result()
	return err == nil && n > 0
}

// Handler requires a valid token from the Authorization header, or the
// "token" query parameter for EventSource clients that cannot set headers.
func (a *Authenticator) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		tokenString := bearerToken(c.Get(fiber.HeaderAuthorization))
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return apperr.Unauthorized("missing authorization")
		}

		claims, err := a.parse(tokenString)
		if err != nil {
			logger.WithError(err).Warn("[Authenticator.Handler] JWT validation failed")
			return apperr.InvalidToken("invalid token")
		}

		if jti, _ := claims["jti"].(string); a.isRevoked(c.Context(), jti) {
			return apperr.InvalidToken("token has been revoked")
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			return apperr.InvalidToken("invalid user id in token")
		}

		email, _ := claims["email"].(string)
		c.Locals("user_id", userID)
		c.Locals("user_email", email)
		c.Locals("claims", claims)
		return c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func (a *Authenticator) parse(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, a.keyFunc,
		jwt.WithValidMethods([]string{"HS256", "RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(time.Minute),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *Authenticator) keyFunc(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if len(a.secret) == 0 {
			return nil, fmt.Errorf("JWT secret not configured")
		}
		return a.secret, nil
	case *jwt.SigningMethodECDSA, *jwt.SigningMethodRSA:
		if a.jwks == nil {
			return nil, fmt.Errorf("JWKS not configured")
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("missing kid in token header")
		}
		jwk, err := a.jwks.GetKey(kid)
		if err != nil {
			return nil, err
		}
		if jwk.Kty == "EC" {
			return parseECPublicKey(jwk)
		}
		return parseRSAPublicKey(jwk)
	default:
		return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
	}
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// JWKSCache caches a remote key set for ttl.
type JWKSCache struct {
	mu        sync.RWMutex
	jwks      *JWKS
	fetchedAt time.Time
	ttl       time.Duration
	url       string
	client    *http.Client
}

func (c *JWKSCache) GetKey(kid string) (*JWK, error) {
	c.mu.RLock()
	fresh := c.jwks != nil && time.Since(c.fetchedAt) < c.ttl
	if fresh {
		if k := c.find(kid); k != nil {
			c.mu.RUnlock()
			return k, nil
		}
	}
	c.mu.RUnlock()

	// unknown kid on a fresh set may mean the keys rotated
	if err := c.refresh(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if k := c.find(kid); k != nil {
		return k, nil
	}
	return nil, fmt.Errorf("key not found: %s", kid)
}

func (c *JWKSCache) find(kid string) *JWK {
	for i := range c.jwks.Keys {
		if c.jwks.Keys[i].Kid == kid {
			k := c.jwks.Keys[i]
			return &k
		}
	}
	return nil
}

func (c *JWKSCache) refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch failed with status: %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}
	c.jwks = &jwks
	c.fetchedAt = time.Now()
	logger.Info("[JWKSCache.refresh] %d keys loaded", len(jwks.Keys))
	return nil
}

func parseECPublicKey(jwk *JWK) (*ecdsa.PublicKey, error) {
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y: %w", err)
	}

	var curve elliptic.Curve
	switch jwk.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	default:
		return nil, fmt.Errorf("unsupported curve: %s", jwk.Crv)
	}
	return &ecdsa.PublicKey{Curve: curve, X: new(big.Int).SetBytes(xBytes), Y: new(big.Int).SetBytes(yBytes)}, nil
}

func parseRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode e: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
