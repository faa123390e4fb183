package charset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

// TestDetectEncoding covers UTF-8, EUC-KR and the Windows-1250 fallback.
func TestDetectEncoding(t *testing.T) {
	eucKR, err := korean.EUCKR.NewEncoder().Bytes([]byte("SHOP_ID,매장명\nS01,강남점\n"))
	require.NoError(t, err)

	assert.Equal(t, EncodingUTF8, DetectEncoding([]byte("sku,stock\nA,1\n")))
	assert.Equal(t, EncodingUTF8, DetectEncoding([]byte("\xEF\xBB\xBFsku")))
	assert.Equal(t, EncodingUTF8, DetectEncoding([]byte("trgovina,šifra\n")))
	assert.Equal(t, EncodingEUCKR, DetectEncoding(eucKR))
	assert.Equal(t, EncodingWindows1250, DetectEncoding([]byte("trgovina,\x8Aifra\n")))
}

// TestDecode converts each supported encoding to UTF-8.
func TestDecode(t *testing.T) {
	eucKR, err := korean.EUCKR.NewEncoder().Bytes([]byte("강남점"))
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		enc  Encoding
		want string
	}{
		{"utf8 with bom", []byte("\xEF\xBB\xBFsku"), EncodingUTF8, "sku"},
		{"detected euc-kr", eucKR, "", "강남점"},
		{"explicit euc-kr", eucKR, EncodingEUCKR, "강남점"},
		{"windows-1250", []byte("\x8Aibenik \xE8"), EncodingWindows1250, "Šibenik č"},
		{"utf8 labelled windows-1250", []byte("Šibenik"), EncodingWindows1250, "Šibenik"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data, tt.enc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestDecodeUnknownEncoding rejects unsupported names.
func TestDecodeUnknownEncoding(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0xFE}, "latin-9")
	assert.Error(t, err)
}
