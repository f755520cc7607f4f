// Package settings is the process-wide, lazily initialized, read-only
// registry of per-carrier credentials and endpoints (component A).
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"schedulep2p/internal/domain"
	"schedulep2p/pkg/apperror"
)

// AuthKind distinguishes the two credential shapes a carrier endpoint can
// carry, per spec.md §6's configuration surface.
type AuthKind int

const (
	AuthToken AuthKind = iota
	AuthOAuthClientCredentials
)

// Secret wraps a credential value so it can never be stringified by
// accident — String, GoString and LogValue all redact it. Only Reveal
// returns the underlying value, and every call site is expected to be a
// deliberate signing/header-construction call.
type Secret struct {
	value string
}

func (s Secret) String() string   { return "[REDACTED]" }
func (s Secret) GoString() string { return "settings.Secret{[REDACTED]}" }

// LogValue implements slog.LogValuer so structured logs never carry the value.
func (s Secret) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// Reveal returns the underlying credential value.
func (s Secret) Reveal() string { return s.value }

// Endpoint is one carrier's URL plus the credential(s) needed to call it.
type Endpoint struct {
	SCAC domain.CarrierCode
	URL  string
	Auth AuthKind

	// Token is populated when Auth == AuthToken.
	Token Secret

	// OAuth client-credentials triplet, populated when
	// Auth == AuthOAuthClientCredentials (ZIM today).
	ClientID     Secret
	ClientSecret Secret
	TokenURL     string
}

// CacheConnection is the key/value-store connection the outer layer is
// responsible for provisioning; this registry only reads how to reach it.
type CacheConnection struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password Secret
}

// Registry is the immutable, process-wide bundle of carrier endpoints.
type Registry struct {
	endpoints map[domain.CarrierCode]Endpoint
	cache     CacheConnection
}

// Endpoint returns the registered endpoint for scac, or false if this
// process was not configured to call that carrier.
func (r *Registry) Endpoint(scac domain.CarrierCode) (Endpoint, bool) {
	e, ok := r.endpoints[scac]
	return e, ok
}

// Configured returns the SCACs this process has endpoints for.
func (r *Registry) Configured() []domain.CarrierCode {
	out := make([]domain.CarrierCode, 0, len(r.endpoints))
	for scac := range r.endpoints {
		out = append(out, scac)
	}
	return out
}

// Cache returns the key/value-store connection parameters.
func (r *Registry) Cache() CacheConnection { return r.cache }

var (
	once     sync.Once
	instance *Registry
	loadErr  error
)

// Load builds the Registry from environment variables, per spec.md §6:
// for each carrier, `<SCAC>_URL` and `<SCAC>_TOKEN`, or the OAuth triplet
// `<SCAC>_CLIENT` / `<SCAC>_SECRET` / `<SCAC>_TURL`. Only carriers that
// have a `<SCAC>_URL` set are considered "configured" for this process —
// a partially configured carrier (URL present, credential absent) fails
// loudly, grounded on spec.md §4.A: "Missing required settings fail
// loudly at startup."
func Load(scacs []domain.CarrierCode) (*Registry, error) {
	once.Do(func() {
		instance, loadErr = load(scacs)
	})
	return instance, loadErr
}

// MustLoad is Load that panics on error, for use at process start.
func MustLoad(scacs []domain.CarrierCode) *Registry {
	r, err := Load(scacs)
	if err != nil {
		panic(err)
	}
	return r
}

func load(scacs []domain.CarrierCode) (*Registry, error) {
	r := &Registry{endpoints: make(map[domain.CarrierCode]Endpoint, len(scacs))}

	for _, scac := range scacs {
		prefix := string(scac)
		url := os.Getenv(prefix + "_URL")
		if url == "" {
			continue // carrier not configured in this deployment
		}

		ep := Endpoint{SCAC: scac, URL: url}

		clientID := os.Getenv(prefix + "_CLIENT")
		clientSecret := os.Getenv(prefix + "_SECRET")
		tokenURL := os.Getenv(prefix + "_TURL")

		switch {
		case clientID != "" || clientSecret != "" || tokenURL != "":
			if clientID == "" || clientSecret == "" || tokenURL == "" {
				return nil, apperror.NewCritical(apperror.CodeMissingSetting, fmt.Sprintf(
					"%s: OAuth triplet partially set, need all of _CLIENT/_SECRET/_TURL", prefix))
			}
			ep.Auth = AuthOAuthClientCredentials
			ep.ClientID = Secret{clientID}
			ep.ClientSecret = Secret{clientSecret}
			ep.TokenURL = tokenURL
		default:
			token := os.Getenv(prefix + "_TOKEN")
			if token == "" {
				return nil, apperror.NewCritical(apperror.CodeMissingSetting, fmt.Sprintf(
					"%s: _URL set but neither _TOKEN nor an OAuth triplet is present", prefix))
			}
			ep.Auth = AuthToken
			ep.Token = Secret{token}
		}

		r.endpoints[scac] = ep
	}

	r.cache = CacheConnection{
		Host:     envOr("CACHE_HOST", "localhost"),
		Port:     envOr("CACHE_PORT", "6379"),
		DB:       envOr("CACHE_DB", "0"),
		Username: os.Getenv("CACHE_USER"),
		Password: Secret{os.Getenv("CACHE_PW")},
	}

	return r, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// reset clears the singleton; test-only, never called from production code.
func reset() {
	once = sync.Once{}
	instance = nil
	loadErr = nil
}
