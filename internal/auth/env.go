package auth

import "strings"

// Env is the platform environment a URL belongs to.
type Env int

// Platform environments.
const (
	EnvDev Env = iota
	EnvTest
	EnvProd
)

// String returns the environment name.
func (e Env) String() string {
	switch e {
	case EnvTest:
		return "test"
	case EnvProd:
		return "prod"
	default:
		return "dev"
	}
}

// DetectEnv classifies a registration or broker URL by its host suffix.
func DetectEnv(uri string) Env {
	switch {
	case strings.Contains(uri, ".test.seewo.com"), strings.Contains(uri, ".gz.cvte.cn"):
		return EnvTest
	case strings.Contains(uri, "iot-broker.seewo.com"):
		return EnvProd
	default:
		return EnvDev
	}
}
