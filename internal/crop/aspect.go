package crop

import "fmt"

// Aspect is a crop aspect preset.
type Aspect string

const (
	AspectFree     Aspect = "free"
	AspectOriginal Aspect = "original"
	Aspect1x1      Aspect = "1:1"
	Aspect4x5      Aspect = "4:5"
	Aspect16x9     Aspect = "16:9"
	Aspect9x16     Aspect = "9:16"
	Aspect4x3      Aspect = "4:3"
	Aspect3x2      Aspect = "3:2"
)

// Aspects lists every preset in menu order.
var Aspects = []Aspect{AspectFree, AspectOriginal, Aspect1x1, Aspect4x5, Aspect16x9, Aspect9x16, Aspect4x3, Aspect3x2}

// ParseAspect validates a preset name.
func ParseAspect(s string) (Aspect, error) {
	for _, a := range Aspects {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown crop aspect %q", s)
}

// Value returns the pixel aspect of the preset for an image of the given
// aspect. The second result is false for AspectFree, which has no value.
func (a Aspect) Value(imageAspect float64) (float64, bool) {
	switch a {
	case AspectOriginal:
		return imageAspect, true
	case Aspect1x1:
		return 1, true
	case Aspect4x5:
		return 4.0 / 5.0, true
	case Aspect16x9:
		return 16.0 / 9.0, true
	case Aspect9x16:
		return 9.0 / 16.0, true
	case Aspect4x3:
		return 4.0 / 3.0, true
	case Aspect3x2:
		return 3.0 / 2.0, true
	default:
		return 0, false
	}
}

// ApplyAspect applies preset a to the crop. The free preset only drops the
// aspect lock and keeps the rectangle.
func ApplyAspect(s State, a Aspect, imageAspect float64) State {
	target, ok := a.Value(imageAspect)
	if !ok {
		return Unlock(s)
	}
	return FromAspect(imageAspect, target)
}
