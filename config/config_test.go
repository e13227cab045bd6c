package config

import "testing"

func validConfig() *Config {
	return &Config{
		CertFile: "cert.pem",
		KeyFile:  "key.pem",
		Port:     DefaultPort,
		Mirror:   DefaultMirror,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing cert", func(c *Config) { c.CertFile = "" }, true},
		{"missing key", func(c *Config) { c.KeyFile = "" }, true},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"negative max conns", func(c *Config) { c.MaxConns = -1 }, true},
		{"max conns set", func(c *Config) { c.MaxConns = 64 }, false},
		{"mirror empty is fine", func(c *Config) { c.Mirror = "" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := validConfig()
	if got := cfg.Addr(); got != ":8443" {
		t.Errorf("Addr() = %q, want %q", got, ":8443")
	}
}
