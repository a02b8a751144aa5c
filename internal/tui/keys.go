package tui

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"tank-arena/internal/game"
)

// DefaultHold is how long one key press keeps its direction latched.
// Terminals report presses and auto-repeat but never releases, so a key
// counts as held until no repeat arrives within the window.
const DefaultHold = 150 * time.Millisecond

// Action is what a key event asks the client to do besides steering.
type Action uint8

const (
	ActionNone Action = iota
	ActionFire
	ActionQuit
)

// KeyLatch turns terminal key presses into a held KeyState.
type KeyLatch struct {
	hold  time.Duration
	up    time.Time
	down  time.Time
	left  time.Time
	right time.Time
}

// NewKeyLatch creates a latch. hold <= 0 uses DefaultHold.
func NewKeyLatch(hold time.Duration) *KeyLatch {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &KeyLatch{hold: hold}
}

// Handle records a key press at now and reports any non-steering action.
// Arrow keys and WASD steer, space fires, q, Esc and Ctrl-C quit.
func (l *KeyLatch) Handle(ev *tcell.EventKey, now time.Time) Action {
	switch ev.Key() {
	case tcell.KeyUp:
		l.up = now
	case tcell.KeyDown:
		l.down = now
	case tcell.KeyLeft:
		l.left = now
	case tcell.KeyRight:
		l.right = now
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'w', 'W':
			l.up = now
		case 's', 'S':
			l.down = now
		case 'a', 'A':
			l.left = now
		case 'd', 'D':
			l.right = now
		case ' ':
			return ActionFire
		case 'q', 'Q':
			return ActionQuit
		}
	}
	return ActionNone
}

// State returns the keys still held at now.
func (l *KeyLatch) State(now time.Time) game.KeyState {
	held := func(t time.Time) bool {
		return !t.IsZero() && now.Sub(t) < l.hold
	}
	return game.KeyState{
		Up:    held(l.up),
		Down:  held(l.down),
		Left:  held(l.left),
		Right: held(l.right),
	}
}

// Release drops every latched key.
func (l *KeyLatch) Release() {
	*l = KeyLatch{hold: l.hold}
}
