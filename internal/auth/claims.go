package auth

import (
	"context"
	"crypto/sha256"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/malabook/mala/server/consts"
	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/gerrors"
)

const claimsTTL = 5 * time.Minute

// Claims are the token claims the service relies on.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
	Scope string `json:"scope"`
}

// KeycloakID is the subject claim.
func (c *Claims) KeycloakID() string {
	return c.Subject
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.RealmAccess.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

type claimsEntry struct {
	claims   *Claims
	validTil time.Time
}

// Verifier validates RS256 access tokens against the realm's JWKS.
// Verified claims are cached by token digest so hot clients do not pay
// for signature checks on every request.
type Verifier struct {
	jwks     *JWKSCache
	parser   *jwt.Parser
	issuer   string
	audience string

	mu    sync.Mutex
	cache map[[sha256.Size]byte]claimsEntry
}

func NewVerifier(keycloakConfig config.KeycloakConfig) *Verifier {
	issuer := strings.TrimRight(keycloakConfig.ServerURL, "/") + "/realms/" + keycloakConfig.Realm
	return &Verifier{
		jwks:     NewJWKSCache(issuer + "/protocol/openid-connect/certs"),
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"RS256"})),
		issuer:   issuer,
		audience: keycloakConfig.Audience,
		cache:    make(map[[sha256.Size]byte]claimsEntry),
	}
}

// Verify checks the token signature, issuer and audience and returns
// its claims.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	digest := sha256.Sum256([]byte(rawToken))

	v.mu.Lock()
	if e, ok := v.cache[digest]; ok && time.Now().Before(e.validTil) {
		v.mu.Unlock()
		return e.claims, nil
	}
	v.mu.Unlock()

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, gerrors.New("token has no key id")
		}
		return v.jwks.Key(ctx, kid)
	})
	if err != nil {
		return nil, gerrors.Wrapf(err, "verify token")
	}
	if !claims.VerifyIssuer(v.issuer, true) {
		return nil, gerrors.Newf("unexpected token issuer %q", claims.Issuer)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, gerrors.Newf("token audience does not include %q", v.audience)
	}

	validTil := time.Now().Add(claimsTTL)
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(validTil) {
		validTil = claims.ExpiresAt.Time
	}
	v.mu.Lock()
	v.cache[digest] = claimsEntry{claims: claims, validTil: validTil}
	v.mu.Unlock()
	return claims, nil
}

// SweepExpired drops cached claims past their validity and reports how
// many were removed.
func (v *Verifier) SweepExpired() int {
	now := time.Now()
	v.mu.Lock()
	defer v.mu.Unlock()
	removed := 0
	for digest, e := range v.cache {
		if now.After(e.validTil) {
			delete(v.cache, digest)
			removed++
		}
	}
	return removed
}

// CachedClaims reports the current size of the claims cache.
func (v *Verifier) CachedClaims() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.cache)
}

// CurrentUser is the authenticated caller, resolved from token claims
// and the local users table.
type CurrentUser struct {
	UserID     uint
	KeycloakID string
	Username   string
	Email      string
	FirstName  string
	LastName   string
	Role       string
}

func (u *CurrentUser) HasRole(roles ...string) bool {
	for _, role := range roles {
		if strings.EqualFold(u.Role, role) {
			return true
		}
	}
	return false
}

type currentUserKey struct{}

func WithCurrentUser(ctx context.Context, user *CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserKey{}, user)
}

func CurrentUserFromContext(ctx context.Context) (*CurrentUser, bool) {
	user, ok := ctx.Value(currentUserKey{}).(*CurrentUser)
	return user, ok
}

// TokenFromRequest extracts the access token from the Authorization
// header, falling back to the auth cookie set at login.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, found := strings.CutPrefix(h, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(consts.AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
