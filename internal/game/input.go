package game

// KeyState is the latched direction state sampled once per tick.
type KeyState struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// Any reports whether any direction is held.
func (k KeyState) Any() bool {
	return k.Up || k.Down || k.Left || k.Right
}

// turn returns the yaw direction: +1 left, -1 right, 0 none. Left wins.
func (k KeyState) turn() float64 {
	switch {
	case k.Left:
		return 1
	case k.Right:
		return -1
	}
	return 0
}

// throttle returns +1 forward, -1 backward, 0 none. Up wins.
func (k KeyState) throttle() float64 {
	switch {
	case k.Up:
		return 1
	case k.Down:
		return -1
	}
	return 0
}
