package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"janus/internal/models"
)

// ErrUnauthenticated is returned for every verification failure. Callers
// must not surface the wrapped cause to clients.
var ErrUnauthenticated = errors.New("invalid authentication credentials")

// Verifier turns an opaque bearer token into a stable identity
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}

// ExtractToken extracts the bearer token from an Authorization header value.
// Supports "Bearer <token>" format.
func ExtractToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", errors.New("empty authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty token")
	}

	return token, nil
}

// Claims are the identity claims carried by an ID token.
// "uid" is honoured for providers that put the user id outside "sub".
type Claims struct {
	UID   string `json:"uid,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies ID tokens signed with a shared HMAC secret (HS256)
// or an RSA key pair (RS256).
type JWTVerifier struct {
	hmacSecret []byte
	publicKey  *rsa.PublicKey
	issuer     string
	audience   string
	leeway     time.Duration
}

// JWTOptions configures a JWTVerifier. Exactly one of Secret or PublicKeyPEM is required.
type JWTOptions struct {
	Secret       string
	PublicKeyPEM []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

// NewJWTVerifier creates a verifier from options
func NewJWTVerifier(opts JWTOptions) (*JWTVerifier, error) {
	v := &JWTVerifier{
		issuer:   opts.Issuer,
		audience: opts.Audience,
		leeway:   opts.Leeway,
	}
	if v.leeway == 0 {
		v.leeway = 30 * time.Second
	}

	switch {
	case opts.Secret != "" && len(opts.PublicKeyPEM) > 0:
		return nil, errors.New("configure either a JWT secret or a public key, not both")
	case opts.Secret != "":
		v.hmacSecret = []byte(opts.Secret)
	case len(opts.PublicKeyPEM) > 0:
		key, err := jwt.ParseRSAPublicKeyFromPEM(opts.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
		}
		v.publicKey = key
	default:
		return nil, errors.New("JWT secret or public key is required")
	}

	return v, nil
}

// NewJWTVerifierFromFile reads an RS256 public key from a PEM file
func NewJWTVerifierFromFile(path, issuer, audience string) (*JWTVerifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	return NewJWTVerifier(JWTOptions{PublicKeyPEM: pem, Issuer: issuer, Audience: audience})
}

// Verify checks signature, expiry, issuer and audience and returns the identity
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*models.Identity, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}
	if v.publicKey != nil {
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	} else {
		parserOpts = append(parserOpts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFunc, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrUnauthenticated
	}

	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	return &models.Identity{
		UID:   uid,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

func (v *JWTVerifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if v.publicKey != nil {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return v.hmacSecret, nil
}

// IssueToken signs an HS256 ID token. Used by development tooling and tests;
// production tokens come from the identity provider.
func IssueToken(secret string, identity models.Identity, issuer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret cannot be empty")
	}
	if ttl == 0 {
		ttl = time.Hour
	}

	now := time.Now()
	claims := Claims{
		Email: identity.Email,
		Name:  identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
