package client

import clientconfig "github.com/mintkit/sdk-go/client/config"

// Config re-exports the config.Config type.
type Config = clientconfig.Config

// SubmitConfig re-exports the submission settings type.
type SubmitConfig = clientconfig.SubmitConfig

// DefaultConfig mirrors config.Default.
func DefaultConfig() Config {
	return clientconfig.Default()
}

// DefaultSubmitConfig mirrors config.DefaultSubmitConfig.
func DefaultSubmitConfig() SubmitConfig {
	return clientconfig.DefaultSubmitConfig()
}

// LoadConfig mirrors config.Load.
func LoadConfig(path string) (Config, error) {
	return clientconfig.Load(path)
}
