package pgwire

// Legacy protocol version 2.0, sent as separate major/minor fields in the
// startup packet.
const (
	ProtocolMajor int16 = 2
	ProtocolMinor int16 = 0
)

// SSL negotiation request: an 8-byte packet of int32 length followed by the
// 1234/5679 marker pair, sent before the startup packet.
const (
	SSLRequestLength int32 = 8
	SSLMagicHigh     int16 = 1234
	SSLMagicLow      int16 = 5679
)

// Cancel request: a 16-byte packet with the 1234/5678 marker pair followed
// by the backend process ID and secret key, sent on a fresh connection.
const (
	CancelRequestLength int32 = 16
	CancelMagicHigh     int16 = 1234
	CancelMagicLow      int16 = 5678
)

// Single-byte server responses to an SSL request.
const (
	SSLAccept byte = 'S'
	SSLRefuse byte = 'N'
)

// Frontend (client → server) message types. Password responses carry no tag
// in this protocol generation; they are length-prefixed payloads only.
const (
	MsgQuery     byte = 'Q'
	MsgTerminate byte = 'X'
)

// Backend (server → client) message types. In the legacy protocol these are
// tag-prefixed without a uniform length field; the payload shape depends on
// the tag.
const (
	MsgAuthentication     byte = 'R'
	MsgBackendKeyData     byte = 'K'
	MsgErrorResponse      byte = 'E'
	MsgNoticeResponse     byte = 'N'
	MsgReadyForQuery      byte = 'Z'
	MsgRowDescription     byte = 'T'
	MsgAsciiRow           byte = 'D'
	MsgBinaryRow          byte = 'B'
	MsgCommandComplete    byte = 'C'
	MsgCursorResponse     byte = 'P'
	MsgEmptyQueryResponse byte = 'I'
	MsgNotification       byte = 'A'
)

// Authentication sub-types (carried inside 'R' messages).
const (
	AuthOk                int32 = 0
	AuthKerberosV4        int32 = 1
	AuthKerberosV5        int32 = 2
	AuthCleartextPassword int32 = 3
	AuthCryptPassword     int32 = 4
	AuthMD5Password       int32 = 5
	AuthSCMCredential     int32 = 6
)

// Startup packet layout: a fixed 296 bytes. The length field counts itself.
const (
	StartupDatabaseLength = 64
	StartupUserLength     = 32
	StartupReservedLength = 64 // each of the options, unused and tty blocks

	StartupPacketLength = 4 + 4 + StartupDatabaseLength + StartupUserLength + 3*StartupReservedLength
)
