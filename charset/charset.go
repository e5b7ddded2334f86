// Package charset resolves PostgreSQL encoding names to byte decoders.
// Sessions against servers too old to switch their client encoding to UTF-8
// decode incoming text with whatever encoding the database reports (or an
// explicit override), so the resolver has to cover the single-byte and CJK
// encodings such servers actually use.
package charset

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Charset decodes server bytes into Go strings. A nil underlying encoding
// means bytes pass through unchanged (UTF8 and SQL_ASCII).
type Charset struct {
	Name string
	enc  encoding.Encoding
}

// UTF8 is the encoding every modern session ends up on.
var UTF8 = &Charset{Name: "UTF8"}

// SQLASCII passes bytes through undecoded.
var SQLASCII = &Charset{Name: "SQL_ASCII"}

var byName = map[string]*Charset{
	"UTF8":       UTF8,
	"UNICODE":    UTF8,
	"SQL_ASCII":  SQLASCII,
	"UNKNOWN":    SQLASCII, // reported when the database encoding cannot be trusted
	"LATIN1":     {Name: "LATIN1", enc: charmap.ISO8859_1},
	"LATIN2":     {Name: "LATIN2", enc: charmap.ISO8859_2},
	"LATIN3":     {Name: "LATIN3", enc: charmap.ISO8859_3},
	"LATIN4":     {Name: "LATIN4", enc: charmap.ISO8859_4},
	"LATIN5":     {Name: "LATIN5", enc: charmap.ISO8859_9},
	"LATIN6":     {Name: "LATIN6", enc: charmap.ISO8859_10},
	"LATIN7":     {Name: "LATIN7", enc: charmap.ISO8859_13},
	"LATIN8":     {Name: "LATIN8", enc: charmap.ISO8859_14},
	"LATIN9":     {Name: "LATIN9", enc: charmap.ISO8859_15},
	"LATIN10":    {Name: "LATIN10", enc: charmap.ISO8859_16},
	"ISO_8859_5": {Name: "ISO_8859_5", enc: charmap.ISO8859_5},
	"ISO_8859_6": {Name: "ISO_8859_6", enc: charmap.ISO8859_6},
	"ISO_8859_7": {Name: "ISO_8859_7", enc: charmap.ISO8859_7},
	"ISO_8859_8": {Name: "ISO_8859_8", enc: charmap.ISO8859_8},
	"KOI8":       {Name: "KOI8", enc: charmap.KOI8R},
	"KOI8R":      {Name: "KOI8R", enc: charmap.KOI8R},
	"KOI8U":      {Name: "KOI8U", enc: charmap.KOI8U},
	"WIN866":     {Name: "WIN866", enc: charmap.CodePage866},
	"ALT":        {Name: "ALT", enc: charmap.CodePage866},
	"WIN874":     {Name: "WIN874", enc: charmap.Windows874},
	"WIN1250":    {Name: "WIN1250", enc: charmap.Windows1250},
	"WIN1251":    {Name: "WIN1251", enc: charmap.Windows1251},
	"WIN":        {Name: "WIN", enc: charmap.Windows1251},
	"WIN1252":    {Name: "WIN1252", enc: charmap.Windows1252},
	"WIN1253":    {Name: "WIN1253", enc: charmap.Windows1253},
	"WIN1254":    {Name: "WIN1254", enc: charmap.Windows1254},
	"WIN1255":    {Name: "WIN1255", enc: charmap.Windows1255},
	"WIN1256":    {Name: "WIN1256", enc: charmap.Windows1256},
	"WIN1257":    {Name: "WIN1257", enc: charmap.Windows1257},
	"WIN1258":    {Name: "WIN1258", enc: charmap.Windows1258},
	"EUC_JP":     {Name: "EUC_JP", enc: japanese.EUCJP},
	"SJIS":       {Name: "SJIS", enc: japanese.ShiftJIS},
	"EUC_KR":     {Name: "EUC_KR", enc: korean.EUCKR},
	"EUC_CN":     {Name: "EUC_CN", enc: simplifiedchinese.GBK},
	"GBK":        {Name: "GBK", enc: simplifiedchinese.GBK},
	"GB18030":    {Name: "GB18030", enc: simplifiedchinese.GB18030},
	"BIG5":       {Name: "BIG5", enc: traditionalchinese.Big5},
}

// Resolve looks up an encoding by its PostgreSQL name, case-insensitively.
func Resolve(name string) (*Charset, error) {
	cs, ok := byName[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported database encoding %q", name)
	}
	return cs, nil
}

// Decode converts server bytes to a string.
func (c *Charset) Decode(b []byte) (string, error) {
	if c == nil || c.enc == nil {
		return string(b), nil
	}
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c.Name, err)
	}
	return string(out), nil
}

func (c *Charset) String() string {
	return c.Name
}
