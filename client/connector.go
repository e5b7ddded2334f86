// Package client establishes sessions against servers speaking the legacy
// startup protocol: candidate iteration with failover, the optional
// transport-security upgrade, the fixed binary startup handshake, the
// authentication negotiation, and the post-handshake capability probe with
// its role-aware acceptance check.
package client

import (
	"errors"

	"pgv2/config"
	"pgv2/host"
)

// sharedStatusCache is the process-wide default: connection attempts from
// independent callers share what they learn about hosts.
var sharedStatusCache = host.NewStatusCache()

// SharedStatusCache returns the process-wide host status cache used by
// connectors that were not given their own.
func SharedStatusCache() *host.StatusCache {
	return sharedStatusCache
}

// Connector drives connection attempts for one configuration. The exported
// collaborator fields have working defaults and exist for substitution in
// tests or by embedding applications.
type Connector struct {
	cfg *config.Config

	Cache   *host.StatusCache
	Chooser host.Chooser
	Dialer  Dialer
	Upgrade TLSUpgrade
}

// New returns a connector using the shared status cache and the default
// transport collaborators.
func New(cfg *config.Config) *Connector {
	return &Connector{
		cfg:     cfg,
		Cache:   sharedStatusCache,
		Chooser: host.OrderByStatus,
		Dialer:  netDialer{},
		Upgrade: upgradeTLS,
	}
}

// Connect validates the configuration, then tries each candidate in the
// order the chooser produced until one yields a ready session. Retryable
// failures are recorded in the status cache and accumulate; a configuration
// failure aborts immediately. No candidate is tried twice.
func (c *Connector) Connect() (*Session, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, &Error{Class: ClassConfig, Err: err}
	}
	req := c.cfg.Requirement()

	candidates := c.Chooser(c.cfg.Hosts, req, c.Cache)
	if len(candidates) == 0 {
		return nil, &Error{Class: ClassConfig, Err: errors.New("no candidate hosts")}
	}

	var failures []*Error
	for _, spec := range candidates {
		sess, err := c.connectHost(spec, req)
		if err == nil {
			return sess, nil
		}
		var cerr *Error
		if !errors.As(err, &cerr) {
			cerr = fail(ClassTransport, spec, err)
		}
		if cerr.Class == ClassConfig {
			return nil, cerr
		}
		debugf("%s: attempt failed (%s): %v", spec, cerr.Class, cerr.Err)
		failures = append(failures, cerr)
	}
	return nil, &ExhaustedError{Failures: failures}
}

// connectHost runs the full per-host pipeline: transport, startup packet,
// authentication, startup drain, capability probe, role check.
func (c *Connector) connectHost(spec host.Spec, req host.Requirement) (*Session, error) {
	conn, err := c.establish(spec)
	if err != nil {
		if classOf(err) != ClassConfig {
			c.Cache.Report(spec, host.StatusConnectFailed)
		}
		return nil, err
	}

	sess := newSession(conn, spec, c.Dialer, c.cfg.ConnectTimeout)
	if err := c.startup(sess); err != nil {
		return nil, c.failHost(sess, err)
	}
	if err := c.authenticate(sess); err != nil {
		return nil, c.failHost(sess, err)
	}
	if err := c.drainStartup(sess); err != nil {
		return nil, c.failHost(sess, err)
	}

	status, err := c.setup(sess, req)
	if err != nil {
		return nil, c.failHost(sess, err)
	}
	c.Cache.Report(spec, status)

	if !req.Allows(status) {
		sess.Close()
		return nil, failf(ClassRoleMismatch, spec, "server is %s, connection requires %s", status, req)
	}
	debugf("%s: session ready (server %s, %s)", spec, sess.ServerVersion, status)
	return sess, nil
}

// failHost closes the stream and records the conclusive failure, except for
// configuration errors, which say nothing about the host.
func (c *Connector) failHost(sess *Session, err error) error {
	sess.conn.Close()
	if classOf(err) != ClassConfig {
		c.Cache.Report(sess.spec, host.StatusConnectFailed)
	}
	return err
}
