package main

import (
	"fmt"
	"strconv"
	"strings"
)

// digTarget описывает точку копания из командной строки. Если HasY == false,
// высота берётся с поверхности столбца.
type digTarget struct {
	X, Y, Z float64
	HasY    bool
}

// parseDigs разбирает список "x,z" или "x,y,z", разделённый точкой с запятой
func parseDigs(s string) ([]digTarget, error) {
	var out []digTarget
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		parts := strings.Split(item, ",")
		vals := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("точка копания %q: %w", item, err)
			}
			vals[i] = v
		}

		switch len(vals) {
		case 2:
			out = append(out, digTarget{X: vals[0], Z: vals[1]})
		case 3:
			out = append(out, digTarget{X: vals[0], Y: vals[1], Z: vals[2], HasY: true})
		default:
			return nil, fmt.Errorf("точка копания %q: ожидается x,z или x,y,z", item)
		}
	}
	return out, nil
}
