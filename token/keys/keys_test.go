package keys_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finport/go-oidc-gateway/token/keys"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func jwksJSON(t *testing.T, kid string, pub *rsa.PublicKey, extraKeys ...map[string]string) []byte {
	t.Helper()
	keyEntry := map[string]string{
		"kty": "RSA",
		"use": "sig",
		"kid": kid,
		"alg": "RS256",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
	doc := map[string]any{"keys": append([]map[string]string{keyEntry}, extraKeys...)}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func TestParseJWKS(t *testing.T) {
	key := generateKey(t)

	t.Run("parses RSA signing key", func(t *testing.T) {
		parsed, err := keys.ParseJWKS(jwksJSON(t, "kid-1", &key.PublicKey))
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		require.Equal(t, key.PublicKey.N, parsed["kid-1"].N)
		require.Equal(t, key.PublicKey.E, parsed["kid-1"].E)
	})

	t.Run("skips non-RSA and encryption keys", func(t *testing.T) {
		parsed, err := keys.ParseJWKS(jwksJSON(t, "kid-1", &key.PublicKey,
			map[string]string{"kty": "EC", "kid": "ec-key", "crv": "P-256"},
			map[string]string{"kty": "RSA", "use": "enc", "kid": "enc-key", "n": "AQAB", "e": "AQAB"},
		))
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		require.Contains(t, parsed, "kid-1")
	})

	t.Run("fails when no usable keys remain", func(t *testing.T) {
		_, err := keys.ParseJWKS([]byte(`{"keys":[{"kty":"EC","kid":"ec-only"}]}`))
		require.Error(t, err)
	})

	t.Run("fails on malformed document", func(t *testing.T) {
		_, err := keys.ParseJWKS([]byte(`not json`))
		require.Error(t, err)
	})
}

func TestFetch(t *testing.T) {
	key := generateKey(t)

	t.Run("fetches and parses the document", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(jwksJSON(t, "kid-1", &key.PublicKey))
		}))
		defer ts.Close()

		fetched, err := keys.Fetch(ts.Client(), ts.URL)
		require.NoError(t, err)
		require.Contains(t, fetched, "kid-1")
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		_, err := keys.Fetch(ts.Client(), ts.URL)
		require.Error(t, err)
	})
}

func TestStore(t *testing.T) {
	key := generateKey(t)

	t.Run("replace swaps the whole set", func(t *testing.T) {
		store := keys.NewStore()
		require.Equal(t, 0, store.Len())

		store.Replace(map[string]*rsa.PublicKey{"kid-1": &key.PublicKey})
		got, ok := store.Lookup("kid-1")
		require.True(t, ok)
		require.Equal(t, &key.PublicKey, got)

		store.Replace(map[string]*rsa.PublicKey{"kid-2": &key.PublicKey})
		_, ok = store.Lookup("kid-1")
		require.False(t, ok)
		_, ok = store.Lookup("kid-2")
		require.True(t, ok)
	})

	t.Run("replace copies the input map", func(t *testing.T) {
		store := keys.NewStore()
		input := map[string]*rsa.PublicKey{"kid-1": &key.PublicKey}
		store.Replace(input)
		delete(input, "kid-1")

		_, ok := store.Lookup("kid-1")
		require.True(t, ok)
	})
}
