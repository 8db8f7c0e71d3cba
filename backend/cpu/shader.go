package cpu

import (
	"math"
	"slices"

	"github.com/gogpu/tilerender/tile"
)

// Shader computes the color of one pixel.
//
// x and y are the pixel center in frame coordinates (origin top-left, y
// down), resolution is the full frame size and t is the animation time.
// Shaders are called concurrently and must not keep state between calls.
type Shader func(x, y float64, resolution tile.Size, t float64) (r, g, b uint8)

// DefaultShader is the name of the shader used when none is selected.
const DefaultShader = "gradient"

var shaders = map[string]Shader{
	"gradient": Gradient,
	"plasma":   Plasma,
	"checker":  Checker,
}

// Lookup returns the built-in shader with the given name.
func Lookup(name string) (Shader, bool) {
	s, ok := shaders[name]
	return s, ok
}

// Names returns the names of the built-in shaders, sorted.
func Names() []string {
	names := make([]string, 0, len(shaders))
	for name := range shaders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Gradient maps x to red and y to green, with blue pulsing over time.
func Gradient(x, y float64, res tile.Size, t float64) (r, g, b uint8) {
	u := x / float64(res.Width)
	v := y / float64(res.Height)
	return unit(u), unit(v), unit(0.5 + 0.5*math.Sin(t))
}

// Plasma is the classic sum-of-sines plasma.
func Plasma(x, y float64, res tile.Size, t float64) (r, g, b uint8) {
	u := x/float64(res.Width)*8 - 4
	v := y/float64(res.Height)*8 - 4
	p := math.Sin(u+t) +
		math.Sin((v+t)/2) +
		math.Sin((u+v+t)/2) +
		math.Sin(math.Hypot(u+2*math.Sin(t/3), v+2*math.Cos(t/2))+t)
	p /= 2
	return unit(0.5 + 0.5*math.Sin(math.Pi*p)),
		unit(0.5 + 0.5*math.Sin(math.Pi*p+2*math.Pi/3)),
		unit(0.5 + 0.5*math.Sin(math.Pi*p+4*math.Pi/3))
}

// checkerCell is the checker square size in pixels.
const checkerCell = 32

// Checker draws a checkerboard scrolling right at one cell per time unit.
func Checker(x, y float64, _ tile.Size, t float64) (r, g, b uint8) {
	cx := int(math.Floor(x/checkerCell + t))
	cy := int(math.Floor(y / checkerCell))
	if (cx+cy)&1 == 0 {
		return 0xEE, 0xEE, 0xEE
	}
	return 0x22, 0x22, 0x22
}

// unit converts [0, 1] to a byte, clamping.
func unit(v float64) uint8 {
	return uint8(math.Round(max(0, min(1, v)) * 255))
}
