package layout

import (
	"fmt"
	"slices"

	"github.com/bnema/swayproj/internal/sway"
)

// Side is where the virtual output goes relative to the primary display
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideAbove  Side = "above"
	SideBelow  Side = "below"
	SideManual Side = "manual"
)

// ParseSide validates a placement name
func ParseSide(s string) (Side, error) {
	switch side := Side(s); side {
	case SideLeft, SideRight, SideAbove, SideBelow, SideManual:
		return side, nil
	}
	return "", fmt.Errorf("invalid placement %q", s)
}

// Adjacent returns the position of a w×h output placed on the given side of ref
func Adjacent(ref sway.Output, w, h int, side Side) (x, y int) {
	r := ref.Rect
	switch side {
	case SideRight:
		return r.X + r.Width, r.Y
	case SideAbove:
		return r.X, r.Y - h
	case SideBelow:
		return r.X, r.Y + r.Height
	default:
		return r.X - w, r.Y
	}
}

// Primary picks the reference display: the focused output, else the one at
// the origin, else the first active one. Outputs named in exclude and
// headless outputs are ignored.
func Primary(snapshot []sway.Output, exclude ...string) (sway.Output, bool) {
	var candidates []sway.Output
	for _, o := range snapshot {
		if !o.Active || o.Headless() || slices.Contains(exclude, o.Name) {
			continue
		}
		candidates = append(candidates, o)
	}

	for _, o := range candidates {
		if o.Focused {
			return o, true
		}
	}
	for _, o := range candidates {
		if o.Rect.X == 0 && o.Rect.Y == 0 {
			return o, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return sway.Output{}, false
}
