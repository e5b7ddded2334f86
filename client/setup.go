package client

import (
	"strings"

	"pgv2/charset"
	"pgv2/host"
	"pgv2/version"
)

// versionQuery also forces ISO date style; the encoding branch only
// matters for servers whose database encoding the session may have to
// adopt.
const versionQuery = "set datestyle = 'ISO'; " +
	"select version(), case when pg_encoding_to_char(1) = 'SQL_ASCII' then 'UNKNOWN' else getdatabaseencoding() end"

// setup runs the fixed post-handshake exchange sequence: version detection,
// encoding negotiation, conforming-string probing, optional application
// name and search path configuration, and finally role detection when the
// requirement calls for it. It returns the observed host status.
func (c *Connector) setup(sess *Session, req host.Requirement) (host.Status, error) {
	row, err := c.runSetupQuery(sess, versionQuery, true)
	if err != nil {
		return 0, err
	}
	if len(row) < 2 || row[0] == nil {
		return 0, failf(ClassProtocol, sess.spec, "version query returned no version")
	}
	v, err := version.FromBanner(sess.decode(row[0]))
	if err != nil {
		return 0, fail(ClassProtocol, sess.spec, err)
	}
	sess.ServerVersion = v

	if v.AtLeast("7.3") {
		// Force a UTF-8 session. The begin/commit avoids leaving a
		// transaction open on servers whose default autocommit is off, and
		// every statement in the batch is idempotent.
		sql := "begin; "
		if !v.AtLeast("9.5") {
			// autocommit stopped being a settable parameter in 9.5.
			sql += "set autocommit = on; "
		}
		sql += "set client_encoding = 'UTF8'; "
		if v.AtLeast("9.0") {
			sql += "SET extra_float_digits=3; "
		} else if v.AtLeast("7.4") {
			sql += "SET extra_float_digits=2; "
		}
		sql += "commit"
		if _, err := c.runSetupQuery(sess, sql, false); err != nil {
			return 0, err
		}
		sess.Encoding = charset.UTF8
	} else if err := c.adoptLegacyEncoding(sess, row[1]); err != nil {
		return 0, err
	}
	debugf("%s: session encoding %s", sess.spec, sess.Encoding)

	if v.AtLeast("8.1") {
		row, err := c.runSetupQuery(sess, "select current_setting('standard_conforming_strings')", true)
		if err != nil {
			return 0, err
		}
		if len(row) < 1 || row[0] == nil {
			return 0, failf(ClassProtocol, sess.spec, "conforming-strings query returned no value")
		}
		sess.StdStrings = strings.EqualFold(sess.decode(row[0]), "on")
	}

	if c.cfg.AppName != "" && v.AtLeast("9.0") {
		if err := c.setLiteral(sess, "application_name", c.cfg.AppName); err != nil {
			return 0, err
		}
	}
	if c.cfg.SearchPath != "" {
		if err := c.setLiteral(sess, "search_path", c.cfg.SearchPath); err != nil {
			return 0, err
		}
	}

	if req == host.RequireAny {
		return host.StatusConnectOK, nil
	}
	row, err = c.runSetupQuery(sess, "show transaction_read_only", true)
	if err != nil {
		return 0, err
	}
	if len(row) < 1 || row[0] == nil {
		return 0, failf(ClassProtocol, sess.spec, "role query returned no value")
	}
	if strings.EqualFold(sess.decode(row[0]), "off") {
		return host.StatusPrimary, nil
	}
	return host.StatusSecondary, nil
}

// adoptLegacyEncoding decides the session encoding for servers too old to
// switch to UTF-8: an explicit override wins, then the database-reported
// encoding, then UTF-8 as the hard default.
func (c *Connector) adoptLegacyEncoding(sess *Session, reported []byte) error {
	switch {
	case c.cfg.Charset != "":
		cs, err := charset.Resolve(c.cfg.Charset)
		if err != nil {
			return fail(ClassConfig, sess.spec, err)
		}
		sess.Encoding = cs
	case reported != nil:
		cs, err := charset.Resolve(string(reported))
		if err != nil {
			return fail(ClassProtocol, sess.spec, err)
		}
		sess.Encoding = cs
	default:
		sess.Encoding = charset.UTF8
	}
	return nil
}

// setLiteral issues SET <name> = '<value>' with the value escaped according
// to the session's conforming-strings mode.
func (c *Connector) setLiteral(sess *Session, name, value string) error {
	lit, err := escapeLiteral(value, sess.StdStrings)
	if err != nil {
		return fail(ClassConfig, sess.spec, err)
	}
	_, err = c.runSetupQuery(sess, "SET "+name+" = '"+lit+"'", false)
	return err
}
