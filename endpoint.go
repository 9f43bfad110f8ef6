package main

import (
	"net/http"
	"net/url"
	"strings"
)

// ===== credential extraction & endpoint normalization =====

const (
	gitlabTokenHeader = "X-Gitlab-Token"
	gitlabURLHeader   = "X-Gitlab-Url"

	// The single GitLab REST version this gateway speaks.
	apiVersion = "v4"
	apiPath    = "/api/" + apiVersion
)

// tenantCredential identifies which GitLab account a caller acts as: the
// private token plus the (not yet normalized) endpoint it targets.
type tenantCredential struct {
	Token    string
	Endpoint string
}

// extractCredential pulls the caller credential and optional endpoint
// override out of request headers. The token may arrive either as a bearer
// token or in the dedicated header; the endpoint falls back to the configured
// default. An empty token is legal here: discovery methods never need one and
// the binder rejects everything else.
func extractCredential(r *http.Request, defaultEndpoint string) tenantCredential {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get(gitlabTokenHeader))
	}
	endpoint := strings.TrimSpace(r.Header.Get(gitlabURLHeader))
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return tenantCredential{Token: token, Endpoint: endpoint}
}

// normalizeEndpoint canonicalizes a caller-supplied GitLab endpoint. A path
// that already carries an API version segment must match the supported
// version; otherwise the canonical API path is appended. Failures here occur
// before any session lookup.
func normalizeEndpoint(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apiErrorf(kindMalformedEndpoint, "empty GitLab endpoint")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", apiErrorf(kindMalformedEndpoint, "invalid GitLab endpoint %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", apiErrorf(kindMalformedEndpoint, "GitLab endpoint %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return "", apiErrorf(kindMalformedEndpoint, "GitLab endpoint %q has no host", raw)
	}

	cleanPath := strings.TrimSuffix(parsed.Path, "/")
	if version, ok := apiVersionSegment(cleanPath); ok {
		if version != apiVersion {
			return "", apiErrorf(kindUnsupportedAPIVersion, "unsupported GitLab API version %q, only %s is supported", version, apiVersion)
		}
	} else {
		// A trailing bare "api" segment would otherwise double up as
		// ".../api/api/v4".
		cleanPath = strings.TrimSuffix(cleanPath, "/api")
		cleanPath += apiPath
	}

	normalized := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: cleanPath}
	return normalized.String(), nil
}

// apiVersionSegment reports the version of an "/api/<version>" segment if the
// path contains one.
func apiVersionSegment(p string) (string, bool) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		if part == "api" && i+1 < len(parts) {
			return parts[i+1], true
		}
	}
	return "", false
}
