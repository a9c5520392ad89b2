package mathx

// ScaleU8 scales an 8-bit channel by level/256 with level in [0..255],
// using (v * (level+1)) >> 8 so that level 255 is the identity.
func ScaleU8(v, level uint8) uint8 {
	return uint8((uint16(v) * (uint16(level) + 1)) >> 8)
}
