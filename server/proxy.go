package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// newUpstreamProxy builds the reverse proxy that fronts the upstream API.
// Requests arrive already authenticated; the proxy attaches the session's
// access token when the browser did not send its own bearer token.
func (s *Server) newUpstreamProxy(upstream string) (http.Handler, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, errors.Wrap(err, "[newUpstreamProxy] invalid upstream URL")
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.Errorf("[newUpstreamProxy] upstream URL %q must be absolute", upstream)
	}

	prefix := s.config.GetProxyPrefix()

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.URL.Path = "/" + strings.TrimPrefix(pr.In.URL.Path, prefix)

			if pr.In.Header.Get("Authorization") == "" {
				if _, session, ok := sessionFromContext(pr.In.Context()); ok && session.AccessToken != "" {
					pr.Out.Header.Set("Authorization", "Bearer "+session.AccessToken)
				}
			}
		},
		ModifyResponse: func(resp *http.Response) error {
			log.Debug().
				Int("status", resp.StatusCode).
				Str("path", resp.Request.URL.Path).
				Msg("proxied response")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream proxy error")
			writeJSONError(w, http.StatusBadGateway, "upstream unavailable")
		},
	}

	return proxy, nil
}

func (s *Server) ProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.proxy.ServeHTTP(w, r)
	}
}
