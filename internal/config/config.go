// ABOUTME: Configuration loading for keyward from environment variables
// ABOUTME: Every knob has a default so a bare `keyward serve` works locally

package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings holds the complete keyward configuration, sourced from the
// environment. Secrets left unset are replaced with random values at load
// time, which means sessions and challenge tokens do not survive a restart;
// set them explicitly for multi-instance deployments.
type Settings struct {
	ListenAddress string `env:"KEYWARD_LISTEN_ADDRESS"`
	ListenPort    int    `env:"KEYWARD_LISTEN_PORT" envDefault:"8080"`

	// PublicURL is the externally visible origin (plus optional path prefix)
	// under which keyward is reachable. It doubles as the JWT issuer and
	// audience. Defaults to http://localhost:<port>.
	PublicURL string `env:"KEYWARD_PUBLIC_URL"`

	// AuthEntryURL is where anonymous callers are redirected when a request
	// is denied. Defaults to <PublicURL>auth/.
	AuthEntryURL string `env:"KEYWARD_AUTH_ENTRY_URL"`

	RPID   string `env:"KEYWARD_RP_ID" envDefault:"localhost"`
	RPName string `env:"KEYWARD_RP_NAME"`

	ChallengeAlgo   string `env:"KEYWARD_CHALLENGE_HMAC_ALGO" envDefault:"sha256"`
	ChallengeSecret string `env:"KEYWARD_CHALLENGE_HMAC_SECRET"`

	SessionAlgo       string        `env:"KEYWARD_SESSION_JWT_ALGO" envDefault:"HS256"`
	SessionSecret     string        `env:"KEYWARD_SESSION_JWT_SECRET"`
	SessionCookie     string        `env:"KEYWARD_SESSION_COOKIE" envDefault:"x-auth-jwt"`
	SessionExpiration time.Duration `env:"KEYWARD_SESSION_EXPIRATION" envDefault:"24h"`

	DBPath string `env:"KEYWARD_DB_PATH" envDefault:"data/keyward.db"`

	// Header carrying the original request URL when running behind a reverse
	// proxy in forward-auth mode, and its fallback companion for the host.
	ForwardedProtoHeader string `env:"KEYWARD_FORWARDED_PROTO_HEADER" envDefault:"X-Forwarded-Proto"`
	ForwardedHostHeader  string `env:"KEYWARD_FORWARDED_HOST_HEADER" envDefault:"X-Forwarded-Host"`
	ForwardedURIHeader   string `env:"KEYWARD_FORWARDED_URI_HEADER" envDefault:"X-Forwarded-Uri"`

	// Response headers carrying the authorized identity back to the proxy.
	// Setting any of these to the empty string disables that header.
	UserNameHeader        string `env:"KEYWARD_USER_NAME_HEADER" envDefault:"X-Forwarded-User-Name"`
	UserDisplayNameHeader string `env:"KEYWARD_USER_DISPLAY_NAME_HEADER" envDefault:"X-Forwarded-User-Display-Name"`
	UserRolesHeader       string `env:"KEYWARD_USER_ROLES_HEADER" envDefault:"X-Forwarded-User-Roles"`

	AuditPath string `env:"KEYWARD_AUDIT_PATH" envDefault:"log/audit.log"`

	Verbose   bool   `env:"KEYWARD_VERBOSE"`
	LogFormat string `env:"KEYWARD_LOG_FORMAT" envDefault:"text"`
}

// Load reads settings from the environment and fills in derived defaults.
func Load() (*Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if s.PublicURL == "" {
		s.PublicURL = fmt.Sprintf("http://localhost:%d", s.ListenPort)
	}
	if _, err := url.Parse(s.PublicURL); err != nil {
		return nil, fmt.Errorf("parsing public URL %q: %w", s.PublicURL, err)
	}
	if !strings.HasSuffix(s.PublicURL, "/") {
		s.PublicURL += "/"
	}
	if s.AuthEntryURL == "" {
		s.AuthEntryURL = s.PublicURL + "auth/"
	}
	if s.RPName == "" {
		s.RPName = s.RPID
	}
	if s.ChallengeSecret == "" {
		s.ChallengeSecret = randomSecret()
	}
	if s.SessionSecret == "" {
		s.SessionSecret = randomSecret()
	}
	if s.SessionExpiration <= 0 {
		return nil, fmt.Errorf("session expiration must be positive, got %s", s.SessionExpiration)
	}

	return &s, nil
}

// Secure reports whether the public origin is served over https. Session
// cookies carry the Secure attribute only in that case.
func (s *Settings) Secure() bool {
	return strings.HasPrefix(s.PublicURL, "https:")
}

// Origin returns the scheme://host[:port] part of the public URL, the value
// WebAuthn clients bind ceremonies to.
func (s *Settings) Origin() string {
	u, err := url.Parse(s.PublicURL)
	if err != nil {
		return s.PublicURL
	}
	return u.Scheme + "://" + u.Host
}

// PathPrefix returns the path component of the public URL, normalized to
// start and end with a slash.
func (s *Settings) PathPrefix() string {
	u, err := url.Parse(s.PublicURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// ListenAddr returns the address:port string for the HTTP listener.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.ListenAddress, s.ListenPort)
}

func randomSecret() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("reading random bytes: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
