package browser

import (
	"fmt"
	"strings"
)

// Key describes a keyboard key in DOM terms.
type Key struct {
	Key     string `json:"key"`
	Code    string `json:"code"`
	KeyCode int64  `json:"keyCode"`
}

var (
	KeyEnter      = Key{Key: "Enter", Code: "Enter", KeyCode: 13}
	KeyEscape     = Key{Key: "Escape", Code: "Escape", KeyCode: 27}
	KeySpace      = Key{Key: " ", Code: "Space", KeyCode: 32}
	KeyArrowLeft  = Key{Key: "ArrowLeft", Code: "ArrowLeft", KeyCode: 37}
	KeyArrowUp    = Key{Key: "ArrowUp", Code: "ArrowUp", KeyCode: 38}
	KeyArrowRight = Key{Key: "ArrowRight", Code: "ArrowRight", KeyCode: 39}
	KeyArrowDown  = Key{Key: "ArrowDown", Code: "ArrowDown", KeyCode: 40}
	KeyShift      = Key{Key: "Shift", Code: "ShiftLeft", KeyCode: 16}
	KeyQ          = Key{Key: "q", Code: "KeyQ", KeyCode: 81}
	KeyX          = Key{Key: "x", Code: "KeyX", KeyCode: 88}
	KeyZ          = Key{Key: "z", Code: "KeyZ", KeyCode: 90}
)

var namedKeys = map[string]Key{
	"enter":      KeyEnter,
	"escape":     KeyEscape,
	"space":      KeySpace,
	"arrowleft":  KeyArrowLeft,
	"arrowup":    KeyArrowUp,
	"arrowright": KeyArrowRight,
	"arrowdown":  KeyArrowDown,
	"shift":      KeyShift,
	"shiftleft":  KeyShift,
	"keyq":       KeyQ,
	"keyx":       KeyX,
	"keyz":       KeyZ,
}

// LookupKey resolves a DOM key or code name, case-insensitively. Single
// letters and digits resolve to their Key<L>/Digit<N> codes.
func LookupKey(name string) (Key, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if k, ok := namedKeys[n]; ok {
		return k, nil
	}
	if len(n) == 1 {
		c := n[0]
		switch {
		case c >= 'a' && c <= 'z':
			return Key{Key: n, Code: "Key" + strings.ToUpper(n), KeyCode: int64(c - 'a' + 'A')}, nil
		case c >= '0' && c <= '9':
			return Key{Key: n, Code: "Digit" + n, KeyCode: int64(c)}, nil
		}
	}
	return Key{}, fmt.Errorf("unknown key %q", name)
}
