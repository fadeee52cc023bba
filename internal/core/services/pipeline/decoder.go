package pipeline

import "github.com/lcalzada-xor/tagap/internal/core/domain"

// Decode expands the differential payload of a tagged frame. Each sample is
// the byte at offset i (26 <= i < len-4) minus the reference byte at offset
// 25. Both bytes are read as unsigned values and the difference is returned
// unwrapped, so samples lie in [-255, 255].
//
// Untagged frames and frames with no room for samples decode to nil.
func Decode(c domain.ClassifiedFrame) []int {
	if !c.Tagged {
		return nil
	}
	region := c.Frame.SampleRegion()
	if len(region) == 0 {
		return nil
	}
	return DecodeInto(make([]int, 0, len(region)), c)
}

// DecodeInto appends the decoded samples of c to dst and returns the result.
func DecodeInto(dst []int, c domain.ClassifiedFrame) []int {
	if !c.Tagged {
		return dst
	}
	ref, ok := c.Frame.Reference()
	if !ok {
		return dst
	}
	for _, b := range c.Frame.SampleRegion() {
		dst = append(dst, int(b)-int(ref))
	}
	return dst
}

// SampleCount is the number of samples a frame of the given declared length
// carries: max(0, length - trailer - sample offset).
func SampleCount(length int) int {
	n := length - domain.TrailerSize - domain.SampleOffset
	if n < 0 {
		return 0
	}
	return n
}
