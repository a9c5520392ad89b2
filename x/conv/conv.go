// Package conv appends integers as text without fmt or strconv, for the
// MCU log printer.
package conv

// AppendInt appends the base-10 form of n.
func AppendInt(b []byte, n int64) []byte {
	if n < 0 {
		b = append(b, '-')
		// -n overflows for MinInt64; uint64 conversion keeps it correct.
		return AppendUint(b, uint64(-(n+1))+1)
	}
	return AppendUint(b, uint64(n))
}

// AppendUint appends the base-10 form of n.
func AppendUint(b []byte, n uint64) []byte {
	var tmp [20]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(b, tmp[i:]...)
}

// AppendHex appends n as 0x-prefixed lowercase hex, padded to width digits.
func AppendHex(b []byte, n uint64, width int) []byte {
	const digits = "0123456789abcdef"
	var tmp [16]byte
	i := len(tmp)
	for n > 0 || len(tmp)-i < width {
		if i == 0 {
			break
		}
		i--
		tmp[i] = digits[n&0xF]
		n >>= 4
	}
	if i == len(tmp) {
		i--
		tmp[i] = '0'
	}
	b = append(b, '0', 'x')
	return append(b, tmp[i:]...)
}

// AppendBool appends "true" or "false".
func AppendBool(b []byte, v bool) []byte {
	if v {
		return append(b, "true"...)
	}
	return append(b, "false"...)
}
