package decode

// ITU-R BT.601 integer transform, studio swing input.
//
//	C = 298*(Y-16), D = U-128, E = V-128
//	R = (C + 409E + 128) >> 8
//	G = (C - 100D - 208E + 128) >> 8
//	B = (C + 516D + 128) >> 8
//
// The WGSL kernel in shaders/yuv422.wgsl must stay in lockstep with this.

func clamp8(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// yuvPixel writes one triple at dst[0:3] with red at rOff and blue at 2-rOff.
func yuvPixel(dst []byte, y, d, e, rOff int) {
	c := 298 * (y - 16)
	dst[rOff] = clamp8((c + 409*e + 128) >> 8)
	dst[1] = clamp8((c - 100*d - 208*e + 128) >> 8)
	dst[2-rOff] = clamp8((c + 516*d + 128) >> 8)
}

// yuv422Row expands one UYVY row. Each 4-byte group (U, Y1, V, Y2) yields
// two pixels sharing a chroma pair.
func yuv422Row(src, dst []byte, rOff int) {
	for i, o := 0, 0; i+3 < len(src); i, o = i+4, o+6 {
		d := int(src[i]) - 128
		e := int(src[i+2]) - 128
		yuvPixel(dst[o:o+3], int(src[i+1]), d, e, rOff)
		yuvPixel(dst[o+3:o+6], int(src[i+3]), d, e, rOff)
	}
}

// yuv444Row expands one (U, Y, V) per pixel row.
func yuv444Row(src, dst []byte, rOff int) {
	for i := 0; i+2 < len(dst); i += 3 {
		yuvPixel(dst[i:i+3], int(src[i+1]), int(src[i])-128, int(src[i+2])-128, rOff)
	}
}

// yuv411Row expands one (U, Y, Y, V, Y, Y) per four pixels row.
func yuv411Row(src, dst []byte, rOff int) {
	for i, o := 0, 0; o+11 < len(dst); i, o = i+6, o+12 {
		d := int(src[i]) - 128
		e := int(src[i+3]) - 128
		yuvPixel(dst[o:o+3], int(src[i+1]), d, e, rOff)
		yuvPixel(dst[o+3:o+6], int(src[i+2]), d, e, rOff)
		yuvPixel(dst[o+6:o+9], int(src[i+4]), d, e, rOff)
		yuvPixel(dst[o+9:o+12], int(src[i+5]), d, e, rOff)
	}
}
