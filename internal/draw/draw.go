package draw

// Point represents a 2D coordinate.
type Point struct {
	X, Y float64
}

// Block characters for drawing.
const (
	BlockFull      = '█'
	BlockEmpty     = ' '
	BlockUpperHalf = '▀'
	BlockLowerHalf = '▄'
)

// Color is a canvas palette entry. The zero value is an unset pixel.
type Color uint8

const (
	ColorNone Color = iota
	ColorWhite
	ColorGray
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorMagenta
	ColorCyan
	ColorBrightCyan
	ColorOrange
	colorCount
)

// Reset clears all SGR attributes.
const Reset = "\033[0m"

// sgr holds foreground and background escape sequences per color.
var sgr = [colorCount][2]string{
	ColorNone:       {"\033[39m", "\033[49m"},
	ColorWhite:      {"\033[97m", "\033[107m"},
	ColorGray:       {"\033[90m", "\033[100m"},
	ColorRed:        {"\033[91m", "\033[101m"},
	ColorGreen:      {"\033[92m", "\033[102m"},
	ColorYellow:     {"\033[93m", "\033[103m"},
	ColorBlue:       {"\033[94m", "\033[104m"},
	ColorMagenta:    {"\033[95m", "\033[105m"},
	ColorCyan:       {"\033[36m", "\033[46m"},
	ColorBrightCyan: {"\033[96m", "\033[106m"},
	ColorOrange:     {"\033[38;5;208m", "\033[48;5;208m"},
}

// FG returns the escape sequence selecting c as foreground.
func (c Color) FG() string {
	if c >= colorCount {
		c = ColorWhite
	}
	return sgr[c][0]
}

// BG returns the escape sequence selecting c as background.
func (c Color) BG() string {
	if c >= colorCount {
		c = ColorWhite
	}
	return sgr[c][1]
}

var colorNames = map[string]Color{
	"white":   ColorWhite,
	"gray":    ColorGray,
	"grey":    ColorGray,
	"red":     ColorRed,
	"green":   ColorGreen,
	"yellow":  ColorYellow,
	"blue":    ColorBlue,
	"magenta": ColorMagenta,
	"purple":  ColorMagenta,
	"cyan":    ColorCyan,
	"orange":  ColorOrange,
}

// ParseColor maps a color name to a palette entry.
func ParseColor(name string) (Color, bool) {
	c, ok := colorNames[name]
	return c, ok
}
