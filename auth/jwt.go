package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrStaticToken is returned when a refresh is requested for a pre-issued
// token the client cannot regenerate.
var ErrStaticToken = errors.New("auth: static JWT cannot be regenerated")

// JWTConfig configures the JWT strategy. Either Token (a pre-issued static
// token) or a signing key (Secret for HMAC, Key for asymmetric algorithms)
// must be set.
type JWTConfig struct {
	// Token is a static pre-issued JWT used as-is.
	Token string

	// Secret signs HMAC-family tokens.
	Secret []byte
	// Key signs asymmetric-family tokens (e.g. *rsa.PrivateKey,
	// *ecdsa.PrivateKey, ed25519.PrivateKey).
	Key interface{}
	// Algorithm names the signature algorithm; defaults to HS256 when a
	// Secret is set.
	Algorithm string

	Issuer   string
	Subject  string
	Audience []string
	// Claims are additional private claims stamped on generated tokens.
	Claims map[string]interface{}
	// ExpiresIn, when non-zero, adds iat/exp claims and bounds the cached
	// token's lifetime.
	ExpiresIn time.Duration
}

// JWT implements Strategy with either a static pre-issued token or tokens
// generated on demand from configured claims and a signing key.
type JWT struct {
	cfg   JWTConfig
	clock clockwork.Clock

	mu   sync.Mutex
	cred *Credential
}

// NewJWT creates the strategy.
func NewJWT(cfg JWTConfig) (*JWT, error) {
	if cfg.Token == "" && cfg.Secret == nil && cfg.Key == nil {
		return nil, fmt.Errorf("auth: JWT requires a static token or a signing key")
	}
	return &JWT{cfg: cfg, clock: clockwork.NewRealClock()}, nil
}

// SetClock swaps the clock; used by tests to control expiry.
func (j *JWT) SetClock(clock clockwork.Clock) { j.clock = clock }

func (j *JWT) static() bool { return j.cfg.Token != "" }

// Token returns the bearer token, generating and caching one when the
// strategy is in generated mode.
func (j *JWT) Token(ctx context.Context) (string, error) {
	if j.static() {
		return j.cfg.Token, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.cred.Expired(j.clock.Now()) {
		return j.cred.Value, nil
	}
	cred, err := j.generate()
	if err != nil {
		return "", err
	}
	j.cred = cred
	return cred.Value, nil
}

// Apply sets the bearer token on the request.
func (j *JWT) Apply(ctx context.Context, req *http.Request) error {
	token, err := j.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Refresh regenerates the cached token. Static tokens cannot be refreshed.
func (j *JWT) Refresh(ctx context.Context) error {
	if j.static() {
		return ErrStaticToken
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	cred, err := j.generate()
	if err != nil {
		return err
	}
	j.cred = cred
	return nil
}

// TokenExpired reports whether the current token is past (or within the
// buffer of) its exp claim. Static tokens are decoded without signature
// verification to read exp; a static token without exp never expires.
func (j *JWT) TokenExpired() bool {
	if j.static() {
		tok, err := jwt.Parse([]byte(j.cfg.Token), jwt.WithVerify(false), jwt.WithValidate(false))
		if err != nil {
			return true
		}
		exp := tok.Expiration()
		if exp.IsZero() {
			return false
		}
		return !j.clock.Now().Add(expiryBuffer).Before(exp)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cred.Expired(j.clock.Now())
}

// generate builds and signs a token from the configured claims. Caller
// holds j.mu.
func (j *JWT) generate() (*Credential, error) {
	now := j.clock.Now()
	builder := jwt.NewBuilder()
	if j.cfg.Issuer != "" {
		builder = builder.Issuer(j.cfg.Issuer)
	}
	if j.cfg.Subject != "" {
		builder = builder.Subject(j.cfg.Subject)
	}
	if len(j.cfg.Audience) > 0 {
		builder = builder.Audience(j.cfg.Audience)
	}
	var expiresAt time.Time
	if j.cfg.ExpiresIn > 0 {
		expiresAt = now.Add(j.cfg.ExpiresIn)
		builder = builder.IssuedAt(now).Expiration(expiresAt)
	}
	for name, value := range j.cfg.Claims {
		builder = builder.Claim(name, value)
	}
	tok, err := builder.Build()
	if err != nil {
		return nil, &AuthenticationError{Msg: "build JWT claims", Err: err}
	}

	alg, key, err := j.signingKey()
	if err != nil {
		return nil, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, key))
	if err != nil {
		return nil, &AuthenticationError{Msg: "sign JWT", Err: err}
	}
	return &Credential{Value: string(signed), ExpiresAt: expiresAt}, nil
}

func (j *JWT) signingKey() (jwa.SignatureAlgorithm, interface{}, error) {
	name := j.cfg.Algorithm
	if name == "" {
		name = "HS256"
	}
	var alg jwa.SignatureAlgorithm
	switch name {
	case "HS256":
		alg = jwa.HS256
	case "HS384":
		alg = jwa.HS384
	case "HS512":
		alg = jwa.HS512
	case "RS256":
		alg = jwa.RS256
	case "RS384":
		alg = jwa.RS384
	case "RS512":
		alg = jwa.RS512
	case "ES256":
		alg = jwa.ES256
	case "ES384":
		alg = jwa.ES384
	case "EdDSA":
		alg = jwa.EdDSA
	default:
		return "", nil, fmt.Errorf("auth: unsupported JWT algorithm %q", name)
	}

	switch alg {
	case jwa.HS256, jwa.HS384, jwa.HS512:
		if j.cfg.Secret == nil {
			return "", nil, fmt.Errorf("auth: algorithm %s requires a secret", alg)
		}
		return alg, j.cfg.Secret, nil
	default:
		if j.cfg.Key == nil {
			return "", nil, fmt.Errorf("auth: algorithm %s requires a private key", alg)
		}
		return alg, j.cfg.Key, nil
	}
}
