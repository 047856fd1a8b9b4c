package config

// ProxyConfig describes the upstream services the gateway forwards to.
type ProxyConfig interface {
	GetProxyUpstream() string
	GetProxyPrefix() string
	GetAccountsAPIURL() string
}

type Proxy struct{}

var _ ProxyConfig = Proxy{}

// GetProxyUpstream returns the base URL requests under the proxy prefix are
// forwarded to.
func (Proxy) GetProxyUpstream() string {
	return GetEnv("PROXY_UPSTREAM", "")
}

func (Proxy) GetProxyPrefix() string {
	return GetEnv("PROXY_PREFIX", "/proxy/")
}

func (Proxy) GetAccountsAPIURL() string {
	return GetEnv("ACCOUNTS_API_URL", "")
}
