package client

import (
	"fmt"

	"pgv2/pgwire"
)

// runSetupQuery drives one simple-query exchange over the legacy framing
// and returns the values of the last data row, or nil when wantResults is
// false. On a server-reported error it keeps reading to the ready marker so
// the stream state stays consistent, then reports the rejection.
//
// This runner exists only for the fixed session-setup exchanges; it is not
// a query API.
func (c *Connector) runSetupQuery(sess *Session, sql string, wantResults bool) ([][]byte, error) {
	debugf("%s: FE=> Query(%q)", sess.spec, sql)
	err := sess.w.WriteQuery(sql)
	if err == nil {
		err = sess.w.Flush()
	}
	if err != nil {
		return nil, fail(ClassTransport, sess.spec, fmt.Errorf("send query: %w", err))
	}

	var row [][]byte
	var ncols int
	var rejection string

	for {
		tag, err := sess.r.ReadTag()
		if err != nil {
			return nil, fail(ClassTransport, sess.spec, err)
		}

		switch tag {
		case pgwire.MsgReadyForQuery:
			if rejection != "" {
				return nil, failf(ClassRejected, sess.spec, "session setup failed: %s", rejection)
			}
			if wantResults && row == nil {
				return nil, failf(ClassProtocol, sess.spec, "query %q returned no row", sql)
			}
			return row, nil

		case pgwire.MsgRowDescription:
			n, err := sess.r.ReadInt16()
			if err != nil {
				return nil, fail(ClassTransport, sess.spec, err)
			}
			for i := 0; i < int(n); i++ {
				if err := c.skipFieldDescription(sess); err != nil {
					return nil, err
				}
			}
			ncols = int(n)

		case pgwire.MsgAsciiRow:
			row, err = c.readRow(sess, ncols)
			if err != nil {
				return nil, err
			}

		case pgwire.MsgCommandComplete, pgwire.MsgCursorResponse, pgwire.MsgEmptyQueryResponse:
			if _, err := sess.r.ReadString(); err != nil {
				return nil, fail(ClassTransport, sess.spec, err)
			}

		case pgwire.MsgNotification:
			// Asynchronous notify: process id then the channel name.
			if _, err := sess.r.ReadInt32(); err != nil {
				return nil, fail(ClassTransport, sess.spec, err)
			}
			if _, err := sess.r.ReadString(); err != nil {
				return nil, fail(ClassTransport, sess.spec, err)
			}

		case pgwire.MsgNoticeResponse:
			msg, err := sess.r.ReadString()
			if err != nil {
				return nil, fail(ClassTransport, sess.spec, err)
			}
			sess.Warnings = append(sess.Warnings, sess.decode(msg))

		case pgwire.MsgErrorResponse:
			msg, err := sess.r.ReadString()
			if err != nil {
				return nil, fail(ClassTransport, sess.spec, err)
			}
			if rejection == "" {
				rejection = sess.decode(msg)
			}

		default:
			return nil, failf(ClassProtocol, sess.spec, "unexpected message %q in query response", tag)
		}
	}
}

// skipFieldDescription consumes one field of a row description: name, type
// oid, type size, type modifier.
func (c *Connector) skipFieldDescription(sess *Session) error {
	if _, err := sess.r.ReadString(); err != nil {
		return fail(ClassTransport, sess.spec, err)
	}
	if _, err := sess.r.ReadInt32(); err != nil {
		return fail(ClassTransport, sess.spec, err)
	}
	if _, err := sess.r.ReadInt16(); err != nil {
		return fail(ClassTransport, sess.spec, err)
	}
	if _, err := sess.r.ReadInt32(); err != nil {
		return fail(ClassTransport, sess.spec, err)
	}
	return nil
}

// readRow reads a legacy text-format data row: a null bitmap (set bit means
// present, most significant bit first), then for each present value a
// 4-byte length counting itself followed by the bytes.
func (c *Connector) readRow(sess *Session, ncols int) ([][]byte, error) {
	if ncols == 0 {
		return nil, failf(ClassProtocol, sess.spec, "data row without row description")
	}
	bitmap, err := sess.r.ReadBytes((ncols + 7) / 8)
	if err != nil {
		return nil, fail(ClassTransport, sess.spec, err)
	}
	row := make([][]byte, ncols)
	for i := 0; i < ncols; i++ {
		if bitmap[i/8]&(0x80>>(i%8)) == 0 {
			continue
		}
		vlen, err := sess.r.ReadInt32()
		if err != nil {
			return nil, fail(ClassTransport, sess.spec, err)
		}
		if vlen < 4 {
			return nil, failf(ClassProtocol, sess.spec, "invalid value length %d", vlen)
		}
		row[i], err = sess.r.ReadBytes(int(vlen) - 4)
		if err != nil {
			return nil, fail(ClassTransport, sess.spec, err)
		}
	}
	return row, nil
}
