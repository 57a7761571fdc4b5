// Package level maps (world, level) pairs onto the flattened campaign
// ordinal used by the hub's selection API.
package level

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultLayout is seven worlds of four levels each.
var DefaultLayout = Layout{4, 4, 4, 4, 4, 4, 4}

// Key identifies one level by 1-based world and level number.
type Key struct {
	World int `json:"world"`
	Level int `json:"level"`
}

// String renders the key as "w-l".
func (k Key) String() string {
	return fmt.Sprintf("%d-%d", k.World, k.Level)
}

// Dir is the per-level artifact directory name.
func (k Key) Dir() string {
	return fmt.Sprintf("lvl_%d_%d", k.World, k.Level)
}

// Layout lists the number of levels in each world, in campaign order.
type Layout []int

// Total returns the number of levels in the whole campaign.
func (l Layout) Total() int {
	total := 0
	for _, n := range l {
		total += max(n, 0)
	}
	return total
}

// Normalize clamps k into the layout. Worlds with no levels are skipped
// toward the nearest populated world before the level is clamped.
func (l Layout) Normalize(k Key) Key {
	if len(l) == 0 {
		return Key{World: 1, Level: 1}
	}
	world := min(max(k.World, 1), len(l))
	for world > 1 && l[world-1] <= 0 {
		world--
	}
	count := max(l[world-1], 1)
	return Key{World: world, Level: min(max(k.Level, 1), count)}
}

// Ordinal returns the 1-based campaign ordinal of k after clamping.
func (l Layout) Ordinal(k Key) int {
	n := l.Normalize(k)
	ordinal := 0
	for i := 0; i < n.World-1 && i < len(l); i++ {
		ordinal += max(l[i], 0)
	}
	return ordinal + n.Level
}

// Keys enumerates every level in campaign order.
func (l Layout) Keys() []Key {
	keys := make([]Key, 0, l.Total())
	for w, count := range l {
		for lv := 1; lv <= count; lv++ {
			keys = append(keys, Key{World: w + 1, Level: lv})
		}
	}
	return keys
}

// ParseLevels parses a comma separated list such as "1-1,2-3", or "all".
// Entries are clamped into the layout and de-duplicated, preserving order.
func ParseLevels(s string, layout Layout) ([]Key, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return layout.Keys(), nil
	}
	var (
		keys []Key
		seen = make(map[Key]bool)
	)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := ParseKey(part)
		if err != nil {
			return nil, err
		}
		k = layout.Normalize(k)
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("no levels in %q", s)
	}
	return keys, nil
}

// ParseKey parses "w-l" (also accepting "w_l" and "w.l").
func ParseKey(s string) (Key, error) {
	sep := strings.IndexAny(s, "-_.")
	if sep <= 0 || sep == len(s)-1 {
		return Key{}, fmt.Errorf("invalid level %q: want world-level", s)
	}
	w, err := strconv.Atoi(s[:sep])
	if err != nil {
		return Key{}, fmt.Errorf("invalid world in %q: %w", s, err)
	}
	lv, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return Key{}, fmt.Errorf("invalid level in %q: %w", s, err)
	}
	return Key{World: w, Level: lv}, nil
}

// ParseLayout parses a comma separated list of per-world level counts.
func ParseLayout(s string) (Layout, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return append(Layout(nil), DefaultLayout...), nil
	}
	var layout Layout
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid world layout %q: %w", s, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid world layout %q: negative level count", s)
		}
		layout = append(layout, n)
	}
	if layout.Total() == 0 {
		return nil, fmt.Errorf("invalid world layout %q: no levels", s)
	}
	return layout, nil
}
