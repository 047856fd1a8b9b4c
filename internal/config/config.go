package config

type Config interface {
	EnvConfig
	TrustConfig
	CorsConfig
	ProxyConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetOrigin() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Trust
	Cors
	Proxy
}

func New() Config {
	return mainConfig{}
}
