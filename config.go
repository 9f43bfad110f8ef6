package main

import (
	"os"
	"strings"

	optional "github.com/TBXark/optional-go"
	"github.com/go-sphere/confstore"
	"github.com/go-sphere/confstore/codec"
	"github.com/go-sphere/confstore/provider"
	cfgfile "github.com/go-sphere/confstore/provider/file"
	cfghttp "github.com/go-sphere/confstore/provider/http"
)

// ===== configuration =====

type ManifestConfig struct {
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

type Options struct {
	// LogEnabled turns on per-request HTTP logging.
	LogEnabled optional.Field[bool] `json:"logEnabled,omitempty"`
	// StrictOrigin rejects browser requests whose Origin is not allowlisted.
	// Defaults to true; requests without an Origin header always pass.
	StrictOrigin optional.Field[bool] `json:"strictOrigin,omitempty"`
}

type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr,omitempty"`
	// GitlabURL is the default GitLab endpoint used when a caller supplies
	// no override header. May omit the /api/v4 suffix.
	GitlabURL string `json:"gitlabUrl,omitempty"`
	// AllowedOrigins are browser origins admitted by the origin gate.
	AllowedOrigins []string        `json:"allowedOrigins,omitempty"`
	Options        *Options        `json:"options,omitempty"`
	Manifest       *ManifestConfig `json:"manifest,omitempty"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:      envOr("MCP_GITLAB_ADDR", ":8080"),
		GitlabURL: envOr("GITLAB_URL", "https://gitlab.com"),
	}
}

// loadConfig reads a JSON config from a local path or an http(s) URL. An
// empty path yields environment-backed defaults.
func loadConfig(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		conf := defaultConfig()
		conf.normalize()
		return conf, nil
	}
	p, err := provider.Selector(path,
		provider.If(cfghttp.IsRemoteURL, func(s string) provider.Provider { return cfghttp.New(s) }),
		provider.If(cfgfile.IsLocalPath, func(s string) provider.Provider { return cfgfile.New(s) }),
	)
	if err != nil {
		return nil, err
	}
	conf, err := confstore.Load[Config](p, codec.JsonCodec())
	if err != nil {
		return nil, err
	}
	conf.normalize()
	return conf, nil
}

func (c *Config) normalize() {
	if c.Addr == "" {
		c.Addr = envOr("MCP_GITLAB_ADDR", ":8080")
	}
	if c.GitlabURL == "" {
		c.GitlabURL = envOr("GITLAB_URL", "https://gitlab.com")
	}
	if c.Options == nil {
		c.Options = &Options{}
	}
	if c.Manifest == nil {
		c.Manifest = &ManifestConfig{}
	}
	if c.Manifest.Name == "" {
		c.Manifest.Name = "GitLab MCP Gateway"
	}
	if c.Manifest.Version == "" {
		c.Manifest.Version = BuildVersion
	}
}

func (c *Config) logEnabled() bool {
	return c.Options.LogEnabled.OrElse(envEnabled("MCP_GITLAB_DEBUG"))
}

func (c *Config) strictOrigin() bool {
	return c.Options.StrictOrigin.OrElse(true)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envEnabled(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
