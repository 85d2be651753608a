// ABOUTME: Forward-auth adapter mapping authz decisions to HTTP semantics
// ABOUTME: 204 plus identity headers on allow, 403 or login redirect on deny

package gateway

import (
	"net/http"
	"net/url"
	"strings"
)

// target is the proxied request the proxy asks a decision about, rebuilt from
// the forwarded header set.
type target struct {
	scheme string
	host   string
	uri    string
}

func (t target) url() string {
	return t.scheme + "://" + t.host + t.uri
}

// resolveTarget reads the forwarded headers, falling back to neutral values
// for proxies that omit them. A missing host becomes "unknown", which no
// sensible host pattern matches, so such requests normally hit default deny.
func (s *Server) resolveTarget(r *http.Request) target {
	t := target{
		scheme: r.Header.Get(s.cfg.ForwardedProtoHeader),
		host:   r.Header.Get(s.cfg.ForwardedHostHeader),
		uri:    r.Header.Get(s.cfg.ForwardedURIHeader),
	}
	if t.scheme == "" {
		t.scheme = "http"
	}
	if t.host == "" {
		t.host = "unknown"
	}
	if t.uri == "" {
		t.uri = "/"
	}
	return t
}

func (s *Server) handleForwardAuth(w http.ResponseWriter, r *http.Request) {
	identity := s.sessions.Decode(r)
	t := s.resolveTarget(r)

	decision := s.engine.Evaluate(t.host, t.uri, identity.Roles)
	s.audit.Decision(identity.Name, t.host, t.uri, decision)
	observeDecision(decision.Allowed)

	if !decision.Allowed {
		if identity.IsAnonymous() {
			redirect := s.cfg.AuthEntryURL + "?u=" + url.QueryEscape(t.url())
			http.Redirect(w, r, redirect, http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusForbidden)
		return
	}

	s.injectIdentity(w, identity.Name, identity.DisplayName, identity.Roles)
	w.WriteHeader(http.StatusNoContent)
}

// injectIdentity sets the outbound identity headers the proxy copies onto the
// upstream request. Each header is independently disabled by an empty name in
// the configuration.
func (s *Server) injectIdentity(w http.ResponseWriter, name, displayName string, roles []string) {
	if s.cfg.UserNameHeader != "" {
		w.Header().Set(s.cfg.UserNameHeader, name)
	}
	if s.cfg.UserDisplayNameHeader != "" {
		w.Header().Set(s.cfg.UserDisplayNameHeader, displayName)
	}
	if s.cfg.UserRolesHeader != "" {
		w.Header().Set(s.cfg.UserRolesHeader, strings.Join(roles, ","))
	}
}

// handleReload re-reads the rule set and swaps the engine snapshot. The
// operation gates on the engine itself: the caller must hold an allow rule
// for the gateway's own host and the reload path.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	identity := s.sessions.Decode(r)

	decision := s.engine.Evaluate(r.Host, r.URL.Path, identity.Roles)
	s.audit.Decision(identity.Name, r.Host, r.URL.Path, decision)
	if !decision.Allowed {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	if err := s.engine.Reload(r.Context()); err != nil {
		s.logger.Error("reloading rules", "error", err)
		s.writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}

	s.logger.Info("rules reloaded", "user", identity.Name)
	w.WriteHeader(http.StatusNoContent)
}
