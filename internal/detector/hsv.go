package detector

// hsvFrame holds per-pixel hue, saturation and value planes. Hue is in
// [0,180), saturation and value in [0,255].
type hsvFrame struct {
	h, s, v []uint8
}

func toHSV(rgb []byte, pixels int, dst *hsvFrame) {
	if cap(dst.h) < pixels {
		dst.h = make([]uint8, pixels)
		dst.s = make([]uint8, pixels)
		dst.v = make([]uint8, pixels)
	}
	dst.h, dst.s, dst.v = dst.h[:pixels], dst.s[:pixels], dst.v[:pixels]

	for i := 0; i < pixels; i++ {
		r, g, b := int(rgb[3*i]), int(rgb[3*i+1]), int(rgb[3*i+2])
		dst.h[i], dst.s[i], dst.v[i] = rgbToHSV(r, g, b)
	}
}

func rgbToHSV(r, g, b int) (uint8, uint8, uint8) {
	maxC := max(r, g, b)
	minC := min(r, g, b)
	delta := maxC - minC

	var s int
	if maxC > 0 {
		s = 255 * delta / maxC
	}

	var h float64
	if delta > 0 {
		switch maxC {
		case r:
			h = 60 * float64(g-b) / float64(delta)
		case g:
			h = 120 + 60*float64(b-r)/float64(delta)
		default:
			h = 240 + 60*float64(r-g)/float64(delta)
		}
		if h < 0 {
			h += 360
		}
	}

	return uint8(int(h/2) % 180), uint8(s), uint8(maxC)
}

// contentScore is the mean of the average absolute hue, saturation and
// value deltas between two frames of equal size.
func contentScore(a, b *hsvFrame) float64 {
	n := len(a.v)
	if n == 0 || n != len(b.v) {
		return 0
	}

	var dh, ds, dv int64
	for i := 0; i < n; i++ {
		dh += absDiff(a.h[i], b.h[i])
		ds += absDiff(a.s[i], b.s[i])
		dv += absDiff(a.v[i], b.v[i])
	}

	return float64(dh+ds+dv) / (3 * float64(n))
}

func absDiff(a, b uint8) int64 {
	if a > b {
		return int64(a - b)
	}
	return int64(b - a)
}
