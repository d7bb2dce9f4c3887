package config

import (
	"github.com/mcuadros/go-defaults"
)

type Config struct {
	PrimaryTarget        string `yaml:"primary" default:"http://localhost:3000"`
	ShadowTarget         string `yaml:"shadow" default:"http://localhost:3001"`
	ListenAddress        string `yaml:"listen" default:":8080"`
	StatusEndpoint       string `yaml:"status" default:"status"`
	StatusListenAddress  string `yaml:"status-address"`
	ResponseTag          string `yaml:"response-tag" default:"dual-write"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	PasswordFile         string `yaml:"passwordFile"`
	RetryAfter           int    `yaml:"retry-after" default:"1"`
	MaxQueuedShadows     int    `yaml:"max-queued-shadows" default:"500"`
	ShadowWorkers        int    `yaml:"shadow-workers" default:"4"`
	ShadowTimeoutSeconds int    `yaml:"shadow-timeout-seconds" default:"20"`
	MaxConnections       int    `yaml:"max-connections" default:"0"`
}

func (s *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	defaults.SetDefaults(s)

	type cfg Config

	if err := unmarshal((*cfg)(s)); err != nil {
		return err
	}

	return nil
}

func Default() *Config {
	c := &Config{}
	defaults.SetDefaults(c)

	return c
}
