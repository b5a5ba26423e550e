package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "https://idp.example.com/t/locallink/oauth2/token"
	testAudience = "test-client"
)

type jwksFixture struct {
	privateKey *rsa.PrivateKey
	server     *httptest.Server
	requests   int
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	fixture := &jwksFixture{privateKey: privateKey}
	jwk := map[string]string{
		"kty": "RSA",
		"alg": "RS256",
		"kid": "test-key",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(privateKey.PublicKey.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(privateKey.PublicKey.E)).Bytes()),
	}
	fixture.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fixture.requests++
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []any{jwk}})
	}))
	t.Cleanup(fixture.server.Close)
	return fixture
}

func (f *jwksFixture) signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(f.privateKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func (f *jwksFixture) newVerifier(t *testing.T) *TokenVerifier {
	t.Helper()
	verifier, err := NewTokenVerifier(TokenVerifierConfig{
		Issuer:     testIssuer,
		Audience:   testAudience,
		JWKSURL:    f.server.URL,
		HTTPClient: f.server.Client(),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return verifier
}

func TestVerifyExtractsSubjectAndScopes(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()
	signed := fixture.signToken(t, jwt.MapClaims{
		"aud":   testAudience,
		"iss":   testIssuer,
		"sub":   "provider-1",
		"scope": "openid services:write",
		"exp":   now.Add(5 * time.Minute).Unix(),
		"iat":   now.Unix(),
	})

	claims, err := fixture.newVerifier(t).Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("expected verification to succeed: %v", err)
	}
	if claims.Subject != "provider-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if !claims.HasScopes("services:write", "openid") {
		t.Fatalf("expected scopes to be flattened, got %v", claims.Scopes)
	}
	if claims.HasScopes("admin:read") {
		t.Fatalf("unexpected admin scope granted")
	}
}

func TestVerifyAcceptsTokenWithoutScopeClaim(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()
	signed := fixture.signToken(t, jwt.MapClaims{
		"aud": testAudience,
		"iss": testIssuer,
		"sub": "customer-1",
		"exp": now.Add(5 * time.Minute).Unix(),
		"iat": now.Unix(),
	})

	claims, err := fixture.newVerifier(t).Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("expected verification to succeed: %v", err)
	}
	if len(claims.Scopes) != 0 {
		t.Fatalf("expected no scopes, got %v", claims.Scopes)
	}
}

func TestVerifyRejectsWrongAudienceIssuerAndExpiry(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()
	base := jwt.MapClaims{
		"aud": testAudience,
		"iss": testIssuer,
		"sub": "provider-1",
		"exp": now.Add(5 * time.Minute).Unix(),
		"iat": now.Unix(),
	}

	cases := []struct {
		name   string
		mutate func(claims jwt.MapClaims)
	}{
		{"wrong audience", func(claims jwt.MapClaims) { claims["aud"] = "other-client" }},
		{"wrong issuer", func(claims jwt.MapClaims) { claims["iss"] = "https://evil.example.com" }},
		{"expired", func(claims jwt.MapClaims) { claims["exp"] = now.Add(-time.Minute).Unix() }},
		{"missing subject", func(claims jwt.MapClaims) { delete(claims, "sub") }},
	}
	for _, tc := range cases {
		claims := jwt.MapClaims{}
		for key, value := range base {
			claims[key] = value
		}
		tc.mutate(claims)
		if _, err := fixture.newVerifier(t).Verify(context.Background(), fixture.signToken(t, claims)); err == nil {
			t.Fatalf("%s: expected verification to fail", tc.name)
		}
	}
}

func TestVerifyRejectsNonRS256Token(t *testing.T) {
	fixture := newJWKSFixture(t)
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"aud": testAudience,
		"iss": testIssuer,
		"sub": "provider-1",
		"exp": now.Add(5 * time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := fixture.newVerifier(t).Verify(context.Background(), signed); err == nil {
		t.Fatalf("expected HS256 token to be rejected")
	}
}

func TestVerifyCachesJWKSBetweenCalls(t *testing.T) {
	fixture := newJWKSFixture(t)
	verifier := fixture.newVerifier(t)
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"aud": testAudience,
		"iss": testIssuer,
		"sub": "provider-1",
		"exp": now.Add(5 * time.Minute).Unix(),
		"iat": now.Unix(),
	}

	for range 3 {
		if _, err := verifier.Verify(context.Background(), fixture.signToken(t, claims)); err != nil {
			t.Fatalf("unexpected verification error: %v", err)
		}
	}
	if fixture.requests != 1 {
		t.Fatalf("expected a single JWKS fetch, got %d", fixture.requests)
	}
}

func TestNewTokenVerifierValidatesConfig(t *testing.T) {
	cases := []struct {
		name    string
		cfg     TokenVerifierConfig
		missing error
	}{
		{"missing issuer", TokenVerifierConfig{Audience: testAudience, JWKSURL: "https://example.com/jwks"}, errMissingIssuerConfig},
		{"missing audience", TokenVerifierConfig{Issuer: testIssuer, JWKSURL: "https://example.com/jwks"}, errMissingAudienceConfig},
		{"missing jwks url", TokenVerifierConfig{Issuer: testIssuer, Audience: testAudience, JWKSURL: "  "}, errMissingJWKSURL},
	}
	for _, tc := range cases {
		_, err := NewTokenVerifier(tc.cfg)
		if !errors.Is(err, ErrInvalidVerifierConfig) {
			t.Fatalf("%s: expected invalid config error, got %v", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.missing.Error()) {
			t.Fatalf("%s: expected %v to be reported, got %v", tc.name, tc.missing, err)
		}
	}
}
