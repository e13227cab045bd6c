// Package cmd wires up the CLI flags and dispatches to the server core.
package cmd

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"tlsd/config"
	"tlsd/internal/engine"
	"tlsd/internal/engine/stdtls"
	"tlsd/internal/errors"
	"tlsd/internal/metrics"
	"tlsd/server"
	"tlsd/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X tlsd/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the server until ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	cfg := &config.Config{}
	fs := flag.NewFlagSet("tlsd", flag.ContinueOnError)

	// ── listener ─────────────────────────────────────────────────
	fs.IntVarP(&cfg.Port, "port", "p", config.DefaultPort, "TCP port to listen on")
	fs.IntVar(&cfg.MaxConns, "max-conns", 0, "Simultaneous connection cap (0 = unlimited)")

	// ── output ───────────────────────────────────────────────────
	fs.StringVar(&cfg.Mirror, "mirror", config.DefaultMirror, `Mirror decrypted bytes to FILE, "-" for stdout, "" to disable (.gz compresses)`)
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if len(args) == 0 {
		// No arguments is an error, not a help request: the process
		// must exit non-zero when the key material is missing.
		printUsage(fs)
		return fmt.Errorf("certificate and key files required")
	}
	if showVersion {
		fmt.Printf("tlsd %s\n", version)
		return nil
	}

	// ── positional arguments ─────────────────────────────────────
	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		fmt.Printf("tlsd: would listen on %s (cert %s, key %s)\n", cfg.Addr(), cfg.CertFile, cfg.KeyFile)
		return nil
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return errors.WrapSetup("certificate", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	sink, err := util.NewSink(cfg.Mirror)
	if err != nil {
		return errors.WrapSetup("mirror", err)
	}
	defer sink.Close() //nolint:errcheck

	if cfg.Mirror == "-" && term.IsTerminal(int(os.Stdout.Fd())) {
		logger.Warn("mirroring decrypted traffic to a terminal; pipe stdout or use --mirror FILE")
	}

	factory := func() (engine.Engine, error) {
		return stdtls.New(tlsCfg), nil
	}

	srv := server.New(cfg, logger, factory, sink, metrics.New())
	return srv.ListenAndServe(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

func parsePositional(cfg *config.Config, remaining []string) error {
	switch len(remaining) {
	case 0:
		return fmt.Errorf("certificate and key files required (use --help for usage)")
	case 1:
		return fmt.Errorf("private key file required (use --help for usage)")
	case 2:
		cfg.CertFile = remaining[0]
		cfg.KeyFile = remaining[1]
		return nil
	default:
		return fmt.Errorf("too many arguments: %v", remaining[2:])
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tlsd – minimal TLS echo-reply server v%s

Terminates TLS, waits for a blank-line-terminated request, and answers
every connection with a fixed HTTP response.

Usage:
  tlsd [options] <cert.pem> <key.pem>

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  tlsd cert.pem key.pem                        Listen on %d
  tlsd -p 9443 cert.pem key.pem                Custom port
  tlsd --mirror traffic.gz cert.pem key.pem    Record plaintext, gzipped
  tlsd -vv cert.pem key.pem                    Chatty logging
`, config.DefaultPort)
}
