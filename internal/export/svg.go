// Package export renders finished runs for use outside the simulator.
package export

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

const padding = 0.1

type bounds struct {
	minX, minY, maxX, maxY float64
}

func (b *bounds) add(p r2.Vec) {
	b.minX = math.Min(b.minX, p.X)
	b.maxX = math.Max(b.maxX, p.X)
	b.minY = math.Min(b.minY, p.Y)
	b.maxY = math.Max(b.maxY, p.Y)
}

// TrajectoriesToSVG draws one polyline per body in its color, plus a dot
// at its current position. All bodies share one scale, so relative sizes
// of orbits are preserved.
func TrajectoriesToSVG(bodies []dynamo.Body, width, height int) string {
	b := bounds{minX: math.Inf(1), minY: math.Inf(1), maxX: math.Inf(-1), maxY: math.Inf(-1)}
	for _, body := range bodies {
		b.add(body.Position)
		for _, p := range body.Trajectory() {
			b.add(p)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	if len(bodies) == 0 {
		sb.WriteString("</svg>")
		return sb.String()
	}

	// Square span keeps circles circular.
	span := math.Max(b.maxX-b.minX, b.maxY-b.minY)
	if span == 0 {
		span = 1
	}
	span *= 1 + 2*padding
	cx, cy := (b.minX+b.maxX)/2, (b.minY+b.maxY)/2
	size := float64(min(width, height))

	project := func(p r2.Vec) (float64, float64) {
		x := float64(width)/2 + (p.X-cx)/span*size
		y := float64(height)/2 - (p.Y-cy)/span*size
		return x, y
	}

	for _, body := range bodies {
		color := body.Color.Hex()
		trail := body.Trajectory()
		if len(trail) > 1 {
			fmt.Fprintf(&sb, `<polyline id="%s" fill="none" stroke="%s" stroke-width="1.5" points="`, escape(body.Name), color)
			for i, p := range trail {
				x, y := project(p)
				if i > 0 {
					sb.WriteByte(' ')
				}
				fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
			}
			sb.WriteString("\"/>\n")
		}

		x, y := project(body.Position)
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"><title>%s</title></circle>
`, x, y, color, escape(body.Name))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// WriteSVG writes TrajectoriesToSVG output to path.
func WriteSVG(path string, bodies []dynamo.Body, width, height int) error {
	if width <= 0 || height <= 0 {
		return dynamo.Validationf("svg size must be positive, got %dx%d", width, height)
	}
	return os.WriteFile(path, []byte(TrajectoriesToSVG(bodies, width, height)), 0644)
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")

func escape(s string) string { return escaper.Replace(s) }
