package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/malabook/mala/server/internal/gerrors"
	"github.com/malabook/mala/server/internal/log"
)

const jwksTTL = time.Hour

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// JWKSCache holds the realm's signing keys, refreshed at most once per
// TTL. When a refresh fails, the previous key set keeps serving so a
// Keycloak blip does not invalidate every request in flight.
type JWKSCache struct {
	certsURL   string
	httpClient *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSCache(certsURL string) *JWKSCache {
	return &JWKSCache{
		certsURL:   certsURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Key returns the RSA public key for kid, refreshing the set when it is
// stale or the kid is unknown.
func (j *JWKSCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	fresh := time.Since(j.fetchedAt) < jwksTTL
	if fresh {
		if key, ok := j.keys[kid]; ok {
			return key, nil
		}
	}

	if err := j.refresh(ctx); err != nil {
		if len(j.keys) == 0 {
			return nil, err
		}
		log.Warning(ctx, "JWKS refresh failed, serving stale keys", "err", err)
	}
	key, ok := j.keys[kid]
	if !ok {
		return nil, gerrors.Newf("unknown signing key %q", kid)
	}
	return key, nil
}

// refresh is called with the mutex held.
func (j *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.certsURL, nil)
	if err != nil {
		return gerrors.Wrap(err)
	}
	resp, err := j.httpClient.Do(req)
	if err != nil {
		return gerrors.Wrapf(err, "fetch JWKS")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return gerrors.Newf("fetch JWKS: %s", resp.Status)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return gerrors.Wrapf(err, "decode JWKS")
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		key, err := parseRSAKey(k)
		if err != nil {
			log.Warning(ctx, "Skipping unparsable JWKS key", "kid", k.Kid, "err", err)
			continue
		}
		keys[k.Kid] = key
	}
	if len(keys) == 0 {
		return gerrors.New("JWKS contains no usable RSA keys")
	}
	j.keys = keys
	j.fetchedAt = time.Now()
	log.Debug(ctx, "Refreshed JWKS", "keys", len(keys))
	return nil
}

func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, gerrors.Wrapf(err, "modulus")
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, gerrors.Wrapf(err, "exponent")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
