//go:build linux

package sysfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"proxnode-go/types"
)

// LED drives a multicolor LED class device (multi_intensity +
// brightness). It shows the first pixel of every write.
type LED struct {
	dir   string
	order []string // channel names from multi_index
	max   int
}

func OpenLED(root, name string) (*LED, error) {
	dir := filepath.Join(root, name)
	idx, err := os.ReadFile(filepath.Join(dir, "multi_index"))
	if err != nil {
		return nil, fmt.Errorf("led %s: %w", name, err)
	}
	order := strings.Fields(string(idx))
	if len(order) == 0 {
		return nil, fmt.Errorf("led %s: empty multi_index", name)
	}
	maxRaw, err := os.ReadFile(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, fmt.Errorf("led %s: %w", name, err)
	}
	maxB, err := strconv.Atoi(strings.TrimSpace(string(maxRaw)))
	if err != nil || maxB <= 0 {
		return nil, fmt.Errorf("led %s: bad max_brightness %q", name, strings.TrimSpace(string(maxRaw)))
	}
	return &LED{dir: dir, order: order, max: maxB}, nil
}

func (l *LED) Write(colors []types.Color) error {
	var c types.Color
	if len(colors) > 0 {
		c = colors[0]
	}
	vals := make([]string, len(l.order))
	for i, ch := range l.order {
		var v uint8
		switch ch {
		case "red":
			v = c.R
		case "green":
			v = c.G
		case "blue":
			v = c.B
		}
		vals[i] = strconv.Itoa(int(v) * l.max / 255)
	}
	if err := os.WriteFile(filepath.Join(l.dir, "multi_intensity"), []byte(strings.Join(vals, " ")), 0o644); err != nil {
		return fmt.Errorf("led intensity: %w", err)
	}
	b := 0
	if c != types.Black {
		b = l.max
	}
	if err := os.WriteFile(filepath.Join(l.dir, "brightness"), []byte(strconv.Itoa(b)), 0o644); err != nil {
		return fmt.Errorf("led brightness: %w", err)
	}
	return nil
}
