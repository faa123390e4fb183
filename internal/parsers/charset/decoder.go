package charset

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// Encoding represents a text encoding
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingEUCKR       Encoding = "euc-kr"
	EncodingWindows1250 Encoding = "windows-1250"
	EncodingISO88592    Encoding = "iso-8859-2"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding guesses the encoding of a byte buffer. Valid UTF-8 always
// wins. Otherwise the sample is scored as EUC-KR: a buffer whose high bytes
// almost all form valid Hangul double-byte pairs is EUC-KR, anything else
// falls back to Windows-1250.
func DetectEncoding(data []byte) Encoding {
	if bytes.HasPrefix(data, utf8BOM) || utf8.Valid(data) {
		return EncodingUTF8
	}

	sample := data
	if len(sample) > 4096 {
		sample = sample[:4096]
	}

	pairs, stray := 0, 0
	for i := 0; i < len(sample); i++ {
		b := sample[i]
		if b < 0x80 {
			continue
		}
		if b >= 0xA1 && b <= 0xFE && i+1 < len(sample) {
			next := sample[i+1]
			if next >= 0xA1 && next <= 0xFE {
				pairs++
				i++
				continue
			}
		}
		stray++
	}

	if pairs > 0 && stray*10 <= pairs {
		return EncodingEUCKR
	}
	return EncodingWindows1250
}

func codec(enc Encoding) (encoding.Encoding, error) {
	switch enc {
	case EncodingEUCKR:
		return korean.EUCKR, nil
	case EncodingWindows1250:
		return charmap.Windows1250, nil
	case EncodingISO88592:
		return charmap.ISO8859_2, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", enc)
}

// Decode converts a byte buffer from the specified encoding to a UTF-8
// string. An empty encoding is detected. Data that is already valid UTF-8
// is returned as is, without the BOM.
func Decode(data []byte, enc Encoding) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if enc == "" {
		enc = DetectEncoding(data)
	}
	if enc == EncodingUTF8 || utf8.Valid(data) {
		return string(data), nil
	}

	c, err := codec(enc)
	if err != nil {
		return "", err
	}
	out, _, err := transform.Bytes(c.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", enc, err)
	}
	return string(out), nil
}
