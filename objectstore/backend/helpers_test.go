package backend

import "github.com/tnqbao/gau-platform/config"

func testConfig(driver string) *config.EnvConfig {
	cfg := &config.EnvConfig{}
	cfg.Storage.Driver = driver
	return cfg
}
