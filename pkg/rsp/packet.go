package rsp

// checksum computes the unsigned sum of b modulo 256, the running checksum
// the framer accumulates over a packet body.
func checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

const hexDigits = "0123456789abcdef"

func hexByte(b byte) (hi, lo byte) {
	return hexDigits[b>>4], hexDigits[b&0xf]
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func parseHexByte(hi, lo byte) (byte, bool) {
	h, ok := hexValue(hi)
	if !ok {
		return 0, false
	}
	l, ok := hexValue(lo)
	if !ok {
		return 0, false
	}
	return h<<4 | l, true
}

// EncodeHex renders b as lowercase hex, two digits per byte, forward byte
// order — the convention used by 'm' memory reads and 'O' console output.
func EncodeHex(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		hi, lo := hexByte(c)
		out[i*2] = hi
		out[i*2+1] = lo
	}
	return string(out)
}

// DecodeHex parses a forward-order hex string into bytes, as used by 'M'
// memory writes and qRcmd payloads. It returns false if s has odd length or
// contains a non-hex-digit.
func DecodeHex(s string) ([]byte, bool) {
	if len(s)%2 != 0 {
		return nil, false
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		b, ok := parseHexByte(s[i*2], s[i*2+1])
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// EncodeHexReversed renders a little-endian value buffer v as hex with byte
// pairs emitted in reverse buffer order — most-significant byte first — the
// convention 'g'/'p' use for register values. width is the register
// width in bits; the output is padded to ceil(width/8)*2 hex digits.
func EncodeHexReversed(v []byte, width int) string {
	n := (width + 7) / 8
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		var b byte
		if i < len(v) {
			b = v[i]
		}
		hi, lo := hexByte(b)
		// Byte i of the buffer lands at reversed position (n-1-i).
		out[(n-1-i)*2] = hi
		out[(n-1-i)*2+1] = lo
	}
	return string(out)
}

// DecodeHexReversed is the inverse of EncodeHexReversed: it parses a
// reversed-byte-order hex string (as sent by 'G'/'P') into a little-endian
// value buffer of ceil(width/8) bytes.
func DecodeHexReversed(s string, width int) ([]byte, bool) {
	n := (width + 7) / 8
	if len(s) != n*2 {
		return nil, false
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := parseHexByte(s[(n-1-i)*2], s[(n-1-i)*2+1])
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}
