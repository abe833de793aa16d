package extract

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitName(t *testing.T) {
	tests := []struct {
		in    string
		first string
		last  string
	}{
		{"Smith, John A.", "John", "Smith"},
		{"John A. Smith", "John", "Smith"},
		{"Smith, Jr.", "", "Smith"},
		{"Maria del Carmen Lopez", "Maria", "Lopez"},
		{"O'Neill, Patricia", "Patricia", "O'Neill"},
		{"Cho, Daniel K., Esq.", "Daniel", "Cho"},
		{"Robert Vance III", "Robert", "Vance"},
		{"Douglas Reyes Jr.", "Douglas", "Reyes"},
		{"Madonna", "", "Madonna"},
		{"  ", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			first, last := SplitName(tc.in)
			require.Equal(t, tc.first, first)
			require.Equal(t, tc.last, last)
		})
	}
}

func TestCleanPhone(t *testing.T) {
	require.Equal(t, "(312) 555-0142", CleanPhone("(312) 555-0142"))
	require.Equal(t, "312.555.0142", CleanPhone("Tel: 312.555.0142"))
	require.Equal(t, "+44 20 7946 0812", CleanPhone("+44 20 7946 0812 ext"))
}

func TestDecodeEmailPlain(t *testing.T) {
	require.Equal(t, "jane@firm.example", DecodeEmail("mailto:jane@firm.example"))
	require.Equal(t, "jane@firm.example", DecodeEmail("mailto:jane@firm.example?subject=hello"))
	require.Equal(t, "jane@firm.example", DecodeEmail("  jane@firm.example "))
}

func TestDecodeEmailObfuscated(t *testing.T) {
	// first byte is the key, the rest XORed with it
	const key = byte(0x42)
	plain := "counsel@example.org"
	encoded := []byte{key}
	for i := 0; i < len(plain); i++ {
		encoded = append(encoded, plain[i]^key)
	}
	require.Equal(t, plain, DecodeEmail(hex.EncodeToString(encoded)))
}

func TestDecodeEmailRejectsNonEmailHex(t *testing.T) {
	// decodes to bytes without an @, so the raw value passes through
	in := "deadbeef"
	require.Equal(t, in, DecodeEmail(in))
}

func TestSplitAddress(t *testing.T) {
	city, region, postal, ok := SplitAddress("100 Main St\nSuite 400\nSpringfield, IL 62701")
	require.True(t, ok)
	require.Equal(t, "Springfield", city)
	require.Equal(t, "IL", region)
	require.Equal(t, "62701", postal)

	_, _, _, ok = SplitAddress("PO Box 1234")
	require.False(t, ok)
}
