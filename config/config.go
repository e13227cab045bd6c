// Package config defines the runtime configuration for tlsd.
package config

import "fmt"

// Config holds every tuneable for a single tlsd process.
type Config struct {
	// ── Credentials ──────────────────────────────────────────────────
	CertFile string // PEM-encoded certificate chain
	KeyFile  string // PEM-encoded private key

	// ── Listener ─────────────────────────────────────────────────────
	Port     int // TCP port to listen on, all interfaces
	MaxConns int // simultaneous connection cap; 0 = unlimited

	// ── Output ───────────────────────────────────────────────────────
	Mirror  string // plaintext mirror destination: "-" stdout, "x.gz" gzip file
	Verbose int
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.CertFile == "" {
		return fmt.Errorf("certificate file is required (use --help for usage)")
	}
	if c.KeyFile == "" {
		return fmt.Errorf("private key file is required (use --help for usage)")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", c.Port)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("--max-conns must be >= 0, got %d", c.MaxConns)
	}
	return nil
}

// Addr returns the listen address, e.g. ":8443".
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
