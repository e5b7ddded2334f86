package client

import (
	"errors"
	"fmt"

	"pgv2/auth"
	"pgv2/pgwire"
)

// startup sends the fixed-layout startup packet for the configured database
// and user.
func (c *Connector) startup(sess *Session) error {
	debugf("%s: FE=> StartupPacket(user=%s, database=%s)", sess.spec, c.cfg.User, c.cfg.Database)
	err := sess.w.WriteStartup(c.cfg.Database, c.cfg.User)
	if err == nil {
		err = sess.w.Flush()
	}
	if err != nil {
		if errors.Is(err, pgwire.ErrIdentifierTooLong) {
			return fail(ClassConfig, sess.spec, err)
		}
		return fail(ClassTransport, sess.spec, fmt.Errorf("send startup packet: %w", err))
	}
	return nil
}

// authenticate drives the challenge/response loop until the server reports
// success. Each authentication request carries a sub-type selecting the
// credential computation; anything else at the top level is a protocol
// violation.
func (c *Connector) authenticate(sess *Session) error {
	password := c.cfg.PasswordFor(sess.spec)

	for {
		tag, err := sess.r.ReadTag()
		if err != nil {
			return fail(ClassTransport, sess.spec, err)
		}

		switch tag {
		case pgwire.MsgErrorResponse:
			msg, err := sess.r.ReadString()
			if err != nil {
				return fail(ClassTransport, sess.spec, err)
			}
			debugf("%s: <=BE ErrorMessage(%s)", sess.spec, msg)
			return failf(ClassRejected, sess.spec, "connection rejected: %s", sess.decode(msg))

		case pgwire.MsgAuthentication:
			sub, err := sess.r.ReadInt32()
			if err != nil {
				return fail(ClassTransport, sess.spec, err)
			}

			switch sub {
			case pgwire.AuthOk:
				debugf("%s: <=BE AuthenticationOk", sess.spec)
				return nil

			case pgwire.AuthCleartextPassword:
				debugf("%s: <=BE AuthenticationReqPassword", sess.spec)
				if password == "" {
					return failf(ClassRejected, sess.spec, "server requested password authentication, but no password was provided")
				}
				if err := c.respond(sess, []byte(password)); err != nil {
					return err
				}

			case pgwire.AuthCryptPassword:
				salt, err := sess.r.ReadBytes(2)
				if err != nil {
					return fail(ClassTransport, sess.spec, err)
				}
				debugf("%s: <=BE AuthenticationReqCrypt(salt=%q)", sess.spec, salt)
				if password == "" {
					return failf(ClassRejected, sess.spec, "server requested password authentication, but no password was provided")
				}
				if err := c.respond(sess, auth.CryptResponse(password, salt)); err != nil {
					return err
				}

			case pgwire.AuthMD5Password:
				salt, err := sess.r.ReadBytes(4)
				if err != nil {
					return fail(ClassTransport, sess.spec, err)
				}
				debugf("%s: <=BE AuthenticationReqMD5(salt=%x)", sess.spec, salt)
				if password == "" {
					return failf(ClassRejected, sess.spec, "server requested password authentication, but no password was provided")
				}
				if err := c.respond(sess, auth.MD5Response(c.cfg.User, password, salt)); err != nil {
					return err
				}

			default:
				return failf(ClassRejected, sess.spec, "authentication method %d is not supported", sub)
			}

		default:
			return failf(ClassProtocol, sess.spec, "unexpected message %q during authentication", tag)
		}
	}
}

func (c *Connector) respond(sess *Session, response []byte) error {
	debugf("%s: FE=> Password", sess.spec)
	err := sess.w.WritePassword(response)
	if err == nil {
		err = sess.w.Flush()
	}
	if err != nil {
		return fail(ClassTransport, sess.spec, fmt.Errorf("send password: %w", err))
	}
	return nil
}

// drainStartup reads post-authentication messages until the server signals
// readiness, capturing the backend key pair and any warnings on the way.
func (c *Connector) drainStartup(sess *Session) error {
	for {
		tag, err := sess.r.ReadTag()
		if err != nil {
			return fail(ClassTransport, sess.spec, err)
		}

		switch tag {
		case pgwire.MsgReadyForQuery:
			debugf("%s: <=BE ReadyForQuery", sess.spec)
			return nil

		case pgwire.MsgBackendKeyData:
			pid, err := sess.r.ReadInt32()
			if err != nil {
				return fail(ClassTransport, sess.spec, err)
			}
			key, err := sess.r.ReadInt32()
			if err != nil {
				return fail(ClassTransport, sess.spec, err)
			}
			debugf("%s: <=BE BackendKeyData(pid=%d)", sess.spec, pid)
			sess.BackendPID = pid
			sess.SecretKey = key

		case pgwire.MsgNoticeResponse:
			msg, err := sess.r.ReadString()
			if err != nil {
				return fail(ClassTransport, sess.spec, err)
			}
			sess.Warnings = append(sess.Warnings, sess.decode(msg))

		case pgwire.MsgErrorResponse:
			msg, err := sess.r.ReadString()
			if err != nil {
				return fail(ClassTransport, sess.spec, err)
			}
			return failf(ClassRejected, sess.spec, "backend start-up failed: %s", sess.decode(msg))

		default:
			return failf(ClassProtocol, sess.spec, "unexpected message %q during session setup", tag)
		}
	}
}
