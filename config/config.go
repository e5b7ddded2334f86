// Package config holds the resolved requirements for a connection request.
// Validation happens once, before any host is tried: a bad sslmode or
// target role string is a configuration error, never a connection failure.
package config

import (
	"crypto/tls"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgpassfile"

	"pgv2/charset"
	"pgv2/host"
)

// SSL modes. "prefer" attempts the upgrade and falls back to plaintext if
// the server refuses; "require" and the verify modes fail instead.
const (
	SSLDisable    = "disable"
	SSLPrefer     = "prefer"
	SSLRequire    = "require"
	SSLVerifyCA   = "verify-ca"
	SSLVerifyFull = "verify-full"
)

// DefaultPort is the standard server port.
const DefaultPort uint16 = 5432

// Config is a fully resolved connection request.
type Config struct {
	Hosts    []host.Spec
	User     string
	Password string // empty: fall back to the password file
	Database string // empty: defaults to User

	SSLMode   string      // one of the SSL* constants; empty means disable
	TLSConfig *tls.Config // optional override for the security upgrade

	TargetSession string // "any", "primary" or "secondary"; empty means any

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration // 0: no per-read deadline
	KeepAlive      bool

	AppName    string
	SearchPath string
	Charset    string // explicit encoding override for legacy servers

	PassFile string // password file path; empty: $PGPASSFILE or ~/.pgpass

	passOnce sync.Once
	passfile *pgpassfile.Passfile
}

// Validate checks the mode strings and fills defaults. It must pass before
// any connection attempt starts.
func (c *Config) Validate() error {
	if len(c.Hosts) == 0 {
		return fmt.Errorf("no hosts configured")
	}
	if c.User == "" {
		return fmt.Errorf("no user configured")
	}
	if c.Database == "" {
		c.Database = c.User
	}
	switch c.SSLMode {
	case "", SSLDisable, SSLPrefer, SSLRequire, SSLVerifyCA, SSLVerifyFull:
	default:
		return fmt.Errorf("invalid sslmode value %q", c.SSLMode)
	}
	if _, err := host.ParseRequirement(c.TargetSession); err != nil {
		return err
	}
	if c.Charset != "" {
		if _, err := charset.Resolve(c.Charset); err != nil {
			return err
		}
	}
	return nil
}

// Requirement returns the parsed target session role. Call after Validate.
func (c *Config) Requirement() host.Requirement {
	req, _ := host.ParseRequirement(c.TargetSession)
	return req
}

// SSLRequested reports whether the transport should attempt the security
// upgrade at all.
func (c *Config) SSLRequested() bool {
	return c.SSLMode != "" && c.SSLMode != SSLDisable
}

// SSLRequired reports whether a refused upgrade is fatal rather than a
// plaintext fallback.
func (c *Config) SSLRequired() bool {
	switch c.SSLMode {
	case SSLRequire, SSLVerifyCA, SSLVerifyFull:
		return true
	}
	return false
}

// PasswordFor returns the password to use against spec: the configured
// password if any, otherwise a per-host lookup in the password file. An
// empty result means no password is available.
func (c *Config) PasswordFor(spec host.Spec) string {
	if c.Password != "" {
		return c.Password
	}
	c.passOnce.Do(func() {
		path := c.PassFile
		if path == "" {
			path = os.Getenv("PGPASSFILE")
		}
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return
			}
			path = filepath.Join(home, ".pgpass")
		}
		pf, err := pgpassfile.ReadPassfile(path)
		if err != nil {
			return
		}
		c.passfile = pf
	})
	if c.passfile == nil {
		return ""
	}
	return c.passfile.FindPassword(spec.Host, strconv.Itoa(int(spec.Port)), c.Database, c.User)
}

// ParseHosts parses a comma-separated "host[:port]" list. IPv6 literals use
// the usual bracketed form when carrying a port ("[::1]:5433"); a bare
// literal with multiple colons is taken whole as the host.
func ParseHosts(s string) ([]host.Spec, error) {
	var specs []host.Spec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		spec := host.Spec{Port: DefaultPort}
		hostPart, portPart, err := splitHostPort(part)
		if err != nil {
			return nil, err
		}
		spec.Host = hostPart
		if portPart != "" {
			port, err := strconv.ParseUint(portPart, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid port in host %q", part)
			}
			spec.Port = uint16(port)
		}
		if spec.Host == "" {
			return nil, fmt.Errorf("empty host in %q", s)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func splitHostPort(part string) (string, string, error) {
	if strings.HasPrefix(part, "[") {
		end := strings.IndexByte(part, ']')
		if end < 0 {
			return "", "", fmt.Errorf("unterminated bracket in host %q", part)
		}
		rest := part[end+1:]
		if rest == "" {
			return part[1:end], "", nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", "", fmt.Errorf("invalid host %q", part)
		}
		return part[1:end], rest[1:], nil
	}
	if strings.Count(part, ":") > 1 {
		// Bare IPv6 literal, no port.
		return part, "", nil
	}
	if i := strings.IndexByte(part, ':'); i >= 0 {
		return part[:i], part[i+1:], nil
	}
	return part, "", nil
}

// Parse builds a Config from command-line flags with environment fallbacks,
// for the diagnostic tools under cmd/. Library callers fill the struct
// directly.
func Parse() (*Config, error) {
	cfg := &Config{}
	var hosts string
	var connectTimeout, readTimeout int

	defHost := envStr("PGHOST", "localhost")
	if p := os.Getenv("PGPORT"); p != "" {
		defHost += ":" + p
	}
	flag.StringVar(&hosts, "hosts", defHost, "comma-separated host[:port] candidates")
	flag.StringVar(&cfg.User, "user", envStr("PGUSER", ""), "user name")
	flag.StringVar(&cfg.Password, "password", envStr("PGPASSWORD", ""), "password (empty: consult password file)")
	flag.StringVar(&cfg.Database, "database", envStr("PGDATABASE", ""), "database name (empty: same as user)")
	flag.StringVar(&cfg.SSLMode, "sslmode", envStr("PGSSLMODE", SSLDisable), "disable, prefer, require, verify-ca or verify-full")
	flag.StringVar(&cfg.TargetSession, "target-session", envStr("PGTARGETSESSIONATTRS", "any"), "any, primary or secondary")
	flag.IntVar(&connectTimeout, "connect-timeout", envInt("PGCONNECT_TIMEOUT", 10), "connect timeout in seconds")
	flag.IntVar(&readTimeout, "socket-timeout", 0, "per-read timeout in seconds (0 = none)")
	flag.BoolVar(&cfg.KeepAlive, "keepalive", true, "enable TCP keep-alive probes")
	flag.StringVar(&cfg.AppName, "appname", envStr("PGAPPNAME", ""), "application name to report")
	flag.StringVar(&cfg.SearchPath, "search-path", "", "schema search path to set")
	flag.StringVar(&cfg.Charset, "charset", "", "encoding override for pre-7.3 servers")
	flag.StringVar(&cfg.PassFile, "passfile", envStr("PGPASSFILE", ""), "password file path")
	service := flag.String("service", envStr("PGSERVICE", ""), "connection service name")
	flag.Parse()

	hostsSet := os.Getenv("PGHOST") != ""
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "hosts" {
			hostsSet = true
		}
	})
	if err := cfg.resolveHosts(*service, hosts, hostsSet); err != nil {
		return nil, err
	}
	cfg.ConnectTimeout = time.Duration(connectTimeout) * time.Second
	cfg.ReadTimeout = time.Duration(readTimeout) * time.Second
	return cfg, nil
}

// resolveHosts applies the connection service, then decides the final host
// list. An explicitly given host list wins over the service file; the
// built-in default applies only when neither source supplied hosts.
func (c *Config) resolveHosts(service, hosts string, hostsSet bool) error {
	if service != "" {
		if err := c.ApplyService(service); err != nil {
			return err
		}
	}
	if !hostsSet && len(c.Hosts) > 0 {
		return nil
	}
	specs, err := ParseHosts(hosts)
	if err != nil {
		return err
	}
	if len(specs) > 0 {
		c.Hosts = specs
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
