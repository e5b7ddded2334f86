package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pgv2/charset"
)

func connectTo(t *testing.T, b *fakeBackend, mutate func(*Connector)) *Session {
	t.Helper()
	c := newTestConnector(baseConfig(t, b.spec()))
	if mutate != nil {
		mutate(c)
	}
	sess, err := c.Connect()
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestSetupBatchModernServer(t *testing.T) {
	b := startBackend(t, backendScript{version: "9.6.1"})
	connectTo(t, b, nil)

	assert.Contains(t, b.recordedQueries(),
		"begin; set client_encoding = 'UTF8'; SET extra_float_digits=3; commit")
}

func TestSetupBatchOldServer(t *testing.T) {
	b := startBackend(t, backendScript{version: "7.4.2"})
	sess := connectTo(t, b, nil)

	queries := b.recordedQueries()
	assert.Contains(t, queries,
		"begin; set autocommit = on; set client_encoding = 'UTF8'; SET extra_float_digits=2; commit")
	for _, q := range queries {
		assert.NotContains(t, q, "standard_conforming_strings")
	}
	// Servers predating the conforming-strings setting always treat a
	// backslash as an escape character.
	assert.False(t, sess.StdStrings)
	assert.Equal(t, charset.UTF8, sess.Encoding)
}

func TestSetupBatchPre74(t *testing.T) {
	b := startBackend(t, backendScript{version: "7.3.4"})
	connectTo(t, b, nil)

	assert.Contains(t, b.recordedQueries(),
		"begin; set autocommit = on; set client_encoding = 'UTF8'; commit")
}

func TestLegacyEncodingReported(t *testing.T) {
	b := startBackend(t, backendScript{version: "7.2.1", dbEncoding: "LATIN1"})
	sess := connectTo(t, b, nil)

	assert.Equal(t, "LATIN1", sess.Encoding.Name)
	for _, q := range b.recordedQueries() {
		assert.NotContains(t, q, "client_encoding")
	}
}

func TestLegacyEncodingOverride(t *testing.T) {
	b := startBackend(t, backendScript{version: "7.2.1", dbEncoding: "LATIN1"})
	sess := connectTo(t, b, func(c *Connector) { c.cfg.Charset = "KOI8" })

	assert.Equal(t, "KOI8", sess.Encoding.Name)
}

func TestLegacyEncodingUnknownFallsBackToASCII(t *testing.T) {
	b := startBackend(t, backendScript{version: "7.2.1", dbEncoding: "UNKNOWN"})
	sess := connectTo(t, b, nil)

	assert.Equal(t, charset.SQLASCII, sess.Encoding)
}

func TestLegacyEncodingBadOverride(t *testing.T) {
	b := startBackend(t, backendScript{version: "7.2.1"})
	cfg := baseConfig(t, b.spec())
	cfg.Charset = "EBCDIC"
	c := newTestConnector(cfg)

	_, err := c.Connect()
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ClassConfig, cerr.Class)
}

func TestConformingStringsOff(t *testing.T) {
	b := startBackend(t, backendScript{confOff: true})
	sess := connectTo(t, b, nil)

	assert.False(t, sess.StdStrings)
}

func TestApplicationNameQuoted(t *testing.T) {
	b := startBackend(t, backendScript{version: "9.6.1"})
	connectTo(t, b, func(c *Connector) { c.cfg.AppName = "my 'app'" })

	assert.Contains(t, b.recordedQueries(), "SET application_name = 'my ''app'''")
}

func TestApplicationNameSkippedOnOldServer(t *testing.T) {
	b := startBackend(t, backendScript{version: "8.4.1"})
	connectTo(t, b, func(c *Connector) { c.cfg.AppName = "myapp" })

	for _, q := range b.recordedQueries() {
		assert.NotContains(t, q, "application_name")
	}
}

func TestSearchPathEscapesBackslashes(t *testing.T) {
	// With conforming strings off, a backslash in a literal must be doubled.
	b := startBackend(t, backendScript{confOff: true})
	connectTo(t, b, func(c *Connector) { c.cfg.SearchPath = `a\b` })

	assert.Contains(t, b.recordedQueries(), `SET search_path = 'a\\b'`)
}

func TestSearchPathConformingStrings(t *testing.T) {
	b := startBackend(t, backendScript{})
	connectTo(t, b, func(c *Connector) { c.cfg.SearchPath = `a\b` })

	assert.Contains(t, b.recordedQueries(), `SET search_path = 'a\b'`)
}

func TestRoleProbeOnlyWhenRequired(t *testing.T) {
	b := startBackend(t, backendScript{})
	connectTo(t, b, nil)

	for _, q := range b.recordedQueries() {
		assert.NotContains(t, q, "transaction_read_only")
	}
}

func TestReconnectQueriesAreIdentical(t *testing.T) {
	b1 := startBackend(t, backendScript{version: "9.6.1"})
	b2 := startBackend(t, backendScript{version: "9.6.1"})
	connectTo(t, b1, nil)
	connectTo(t, b2, nil)

	assert.Equal(t, b1.recordedQueries(), b2.recordedQueries())
}

func TestEscapeLiteral(t *testing.T) {
	tests := []struct {
		in         string
		stdStrings bool
		want       string
	}{
		{"plain", true, "plain"},
		{"o'clock", true, "o''clock"},
		{`back\slash`, true, `back\slash`},
		{`back\slash`, false, `back\\slash`},
		{"both'\\", false, `both''\\`},
	}
	for _, tt := range tests {
		got, err := escapeLiteral(tt.in, tt.stdStrings)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestEscapeLiteralRejectsNul(t *testing.T) {
	_, err := escapeLiteral("bad\x00value", true)
	assert.Error(t, err)
}
