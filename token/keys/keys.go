// Package keys holds the identity provider's current signing keys.
//
// The key set is replaced wholesale, never mutated in place: readers observe
// either the previous set or the new one, so a refresh running concurrently
// with request verification can never expose a partially updated set. The
// refresh policy itself (when to fetch) belongs to the caller.
package keys

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
)

// Store indexes the provider's public keys by key ID.
type Store struct {
	keys atomic.Pointer[map[string]*rsa.PublicKey]
}

// NewStore creates an empty key store.
func NewStore() *Store {
	s := &Store{}
	empty := map[string]*rsa.PublicKey{}
	s.keys.Store(&empty)
	return s
}

// Replace swaps the whole key set in a single atomic operation.
func (s *Store) Replace(keys map[string]*rsa.PublicKey) {
	copied := make(map[string]*rsa.PublicKey, len(keys))
	for kid, key := range keys {
		copied[kid] = key
	}
	s.keys.Store(&copied)
}

// Lookup returns the key for the given key ID.
func (s *Store) Lookup(kid string) (*rsa.PublicKey, bool) {
	key, ok := (*s.keys.Load())[kid]
	return key, ok
}

// Len returns the number of keys in the current set.
func (s *Store) Len() int {
	return len(*s.keys.Load())
}

// VerificationKey is a golang-jwt keyfunc resolving the signing key from the
// token header. An unknown key ID is a verification failure, not a crash.
func (s *Store) VerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	kid, _ := token.Header["kid"].(string)
	if key, ok := s.Lookup(kid); ok {
		return key, nil
	}
	// No kid in the header and a single known key: use it.
	if kid == "" && s.Len() == 1 {
		for _, key := range *s.keys.Load() {
			return key, nil
		}
	}
	return nil, fmt.Errorf("key not found for kid %q", kid)
}

// JWKS JSON types (RFC 7517)

type jwksDocument struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *jwkKey) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// ParseJWKS decodes a JWKS document into a key map suitable for Replace.
// Non-RSA and encryption-only keys are skipped; malformed keys are skipped
// rather than failing the whole set.
func ParseJWKS(data []byte) (map[string]*rsa.PublicKey, error) {
	var doc jwksDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			continue
		}
		keys[jwk.Kid] = pub
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no valid RSA signing keys found")
	}
	return keys, nil
}

// Fetch retrieves and parses the JWKS document from the given URL. Callers
// own the refresh schedule; pair the result with Store.Replace.
func Fetch(client *http.Client, url string) (map[string]*rsa.PublicKey, error) {
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read jwks: %w", err)
	}
	return ParseJWKS(buf)
}
