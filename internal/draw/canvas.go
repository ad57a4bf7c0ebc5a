package draw

import (
	"io"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

// cell is what one terminal cell showed after the last Render.
type cell struct {
	top, bottom Color
	valid       bool
}

// Canvas is a drawing buffer with 2x vertical resolution using half-block characters.
// Supports scaling from logical coordinates to actual terminal pixels.
// Render only emits cells that changed since the previous frame.
type Canvas struct {
	termWidth      int     // Actual terminal columns
	termHeight     int     // Actual terminal rows
	subPixelHeight int     // termHeight * 2
	pixels         []Color // Flat slice: [y * termWidth + x], ColorNone if unset
	shown          []cell  // Per terminal cell, what the terminal currently displays

	// Scaling from logical to pixel coordinates
	logicalWidth  float64
	logicalHeight float64 // In sub-pixels
	scaleX        float64 // termWidth / logicalWidth
	scaleY        float64 // (termHeight*2) / logicalHeight

	// 0-based terminal offsets used for centering the render area.
	offsetCol int
	offsetRow int

	out             []byte // Escape sequences of the frame being rendered
	scaledBuf       []Point
	intersectionBuf []float64
	polygonBuf      []Point
}

// NewScaledCanvas creates a canvas that scales from logical coordinates to terminal pixels.
// logicalWidth/Height define the coordinate space used by callers.
// termWidth/Height are the actual terminal dimensions.
func NewScaledCanvas(termWidth, termHeight int, logicalWidth, logicalHeight float64) *Canvas {
	c := &Canvas{
		logicalWidth:  logicalWidth,
		logicalHeight: logicalHeight,
	}
	c.allocate(termWidth, termHeight)
	return c
}

func (c *Canvas) allocate(termWidth, termHeight int) {
	if termWidth < 0 {
		termWidth = 0
	}
	if termHeight < 0 {
		termHeight = 0
	}
	c.termWidth = termWidth
	c.termHeight = termHeight
	c.subPixelHeight = termHeight * 2
	c.pixels = make([]Color, c.subPixelHeight*termWidth)
	c.shown = make([]cell, termHeight*termWidth)
	c.scaleX = float64(termWidth) / c.logicalWidth
	c.scaleY = float64(c.subPixelHeight) / c.logicalHeight
}

// Resize updates the canvas for new terminal dimensions while keeping logical size.
// A size change forces a full redraw.
func (c *Canvas) Resize(termWidth, termHeight int) {
	if termWidth != c.termWidth || termHeight != c.termHeight {
		c.allocate(termWidth, termHeight)
	}
}

// SetOffset sets the column and row offset for centering the canvas.
// Offsets are 0-based terminal positions: the canvas starts at (offsetCol+1, offsetRow+1).
func (c *Canvas) SetOffset(col, row int) {
	if col != c.offsetCol || row != c.offsetRow {
		c.ForceRedraw()
	}
	c.offsetCol = col
	c.offsetRow = row
}

// OffsetCol returns the column offset used for centering.
func (c *Canvas) OffsetCol() int {
	return c.offsetCol
}

// OffsetRow returns the row offset used for centering.
func (c *Canvas) OffsetRow() int {
	return c.offsetRow
}

// Clear resets all pixels in the canvas.
func (c *Canvas) Clear() {
	clear(c.pixels)
}

// ForceRedraw makes the next Render repaint every cell, e.g. after the
// terminal was cleared.
func (c *Canvas) ForceRedraw() {
	clear(c.shown)
}

// MarkTextDirty records that text was written over n cells starting at the
// 1-based canvas position (col, row), so the next Render repaints them.
func (c *Canvas) MarkTextDirty(col, row, n int) {
	if row < 1 || row > c.termHeight {
		return
	}
	start := max(col-1, 0)
	end := min(col-1+n, c.termWidth)
	for x := start; x < end; x++ {
		c.shown[(row-1)*c.termWidth+x].valid = false
	}
}

// setPixel sets a pixel at actual terminal coordinates (no scaling).
func (c *Canvas) setPixel(x, y int, col Color) {
	if x >= 0 && x < c.termWidth && y >= 0 && y < c.subPixelHeight {
		c.pixels[y*c.termWidth+x] = col
	}
}

// Pixel returns the color at actual terminal coordinates.
func (c *Canvas) Pixel(x, y int) Color {
	if x >= 0 && x < c.termWidth && y >= 0 && y < c.subPixelHeight {
		return c.pixels[y*c.termWidth+x]
	}
	return ColorNone
}

// SetFloat sets a pixel using float logical coordinates (applies scaling).
func (c *Canvas) SetFloat(x, y float64, col Color) {
	px := int(math.Round(x * c.scaleX))
	py := int(math.Round(y * c.scaleY))
	c.setPixel(px, py, col)
}

// DrawLine draws a line between two logical points, stepping one pixel at a
// time along the longer axis.
func (c *Canvas) DrawLine(p1, p2 Point, col Color) {
	x1, y1 := p1.X*c.scaleX, p1.Y*c.scaleY
	x2, y2 := p2.X*c.scaleX, p2.Y*c.scaleY

	steps := int(math.Ceil(math.Max(math.Abs(x2-x1), math.Abs(y2-y1))))
	if steps == 0 {
		c.setPixel(int(math.Round(x1)), int(math.Round(y1)), col)
		return
	}
	// Bounded for degenerate coordinates.
	if steps > 4*(c.termWidth+c.subPixelHeight) {
		steps = 4 * (c.termWidth + c.subPixelHeight)
	}
	dx, dy := (x2-x1)/float64(steps), (y2-y1)/float64(steps)
	for i := 0; i <= steps; i++ {
		c.setPixel(int(math.Round(x1+dx*float64(i))), int(math.Round(y1+dy*float64(i))), col)
	}
}

// DrawPolyline draws connected segments without closing the shape.
func (c *Canvas) DrawPolyline(points []Point, col Color) {
	for i := 0; i+1 < len(points); i++ {
		c.DrawLine(points[i], points[i+1], col)
	}
}

// DrawPolygon draws a polygon on the canvas.
// If filled is true, the interior is filled using scanline algorithm.
func (c *Canvas) DrawPolygon(points []Point, filled bool, col Color) {
	if len(points) < 3 {
		return
	}

	if filled {
		c.fillPolygon(points, col)
	}

	n := len(points)
	for i := 0; i < n; i++ {
		c.DrawLine(points[i], points[(i+1)%n], col)
	}
}

// fillPolygon fills a polygon using scanline algorithm in pixel space.
func (c *Canvas) fillPolygon(points []Point, col Color) {
	if cap(c.scaledBuf) < len(points) {
		c.scaledBuf = make([]Point, len(points))
	}
	scaled := c.scaledBuf[:len(points)]

	for i, p := range points {
		scaled[i] = Point{
			X: p.X * c.scaleX,
			Y: p.Y * c.scaleY,
		}
	}

	minY, maxY := scaled[0].Y, scaled[0].Y
	for _, p := range scaled {
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	yStart := max(int(math.Floor(minY)), 0)
	yEnd := min(int(math.Ceil(maxY)), c.subPixelHeight-1)

	for y := yStart; y <= yEnd; y++ {
		scanY := float64(y) + 0.5
		intersections := c.intersectionBuf[:0]

		n := len(scaled)
		for i := 0; i < n; i++ {
			p1 := scaled[i]
			p2 := scaled[(i+1)%n]

			if (p1.Y <= scanY && p2.Y > scanY) || (p2.Y <= scanY && p1.Y > scanY) {
				t := (scanY - p1.Y) / (p2.Y - p1.Y)
				intersections = append(intersections, p1.X+t*(p2.X-p1.X))
			}
		}
		c.intersectionBuf = intersections

		sort.Float64s(intersections)

		for i := 0; i+1 < len(intersections); i += 2 {
			xStart := int(math.Ceil(intersections[i]))
			xEnd := int(math.Floor(intersections[i+1]))
			for x := xStart; x <= xEnd; x++ {
				c.setPixel(x, y, col)
			}
		}
	}
}

// Render writes the cells that changed since the previous Render as colored
// half blocks. The cells count as shown even when the write fails.
func (c *Canvas) Render(w io.Writer) error {
	c.out = c.out[:0]

	curFG, curBG := Color(255), Color(255)
	lastRow, lastCol := -1, -1

	for row := 0; row < c.termHeight; row++ {
		top := c.pixels[row*2*c.termWidth : (row*2+1)*c.termWidth]
		bottom := c.pixels[(row*2+1)*c.termWidth : (row*2+2)*c.termWidth]
		shown := c.shown[row*c.termWidth : (row+1)*c.termWidth]

		for col := range shown {
			next := cell{top: top[col], bottom: bottom[col], valid: true}
			if shown[col] == next {
				continue
			}
			shown[col] = next

			ch, fg, bg := glyph(next.top, next.bottom)
			// Consecutive cells on one row need no cursor move.
			if row != lastRow || col != lastCol+1 {
				c.out = appendCursor(c.out, col+1+c.offsetCol, row+1+c.offsetRow)
			}
			lastRow, lastCol = row, col

			if fg != curFG {
				c.out = append(c.out, fg.FG()...)
				curFG = fg
			}
			if bg != curBG {
				c.out = append(c.out, bg.BG()...)
				curBG = bg
			}
			c.out = utf8.AppendRune(c.out, ch)
		}
	}

	if len(c.out) == 0 {
		return nil
	}
	c.out = append(c.out, Reset...)
	return writeChunks(w, c.out)
}

// maxChunkSize is the largest single write, close to a typical MTU so SSH
// sessions stream smoothly.
const maxChunkSize = 1400

func writeChunks(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n := min(len(data), maxChunkSize)
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func appendCursor(b []byte, col, row int) []byte {
	b = append(b, "\033["...)
	b = strconv.AppendInt(b, int64(row), 10)
	b = append(b, ';')
	b = strconv.AppendInt(b, int64(col), 10)
	return append(b, 'H')
}

// glyph picks the half-block character and colors for a cell.
func glyph(top, bottom Color) (ch rune, fg, bg Color) {
	switch {
	case top == ColorNone && bottom == ColorNone:
		return BlockEmpty, ColorNone, ColorNone
	case top == bottom:
		return BlockFull, top, ColorNone
	case bottom == ColorNone:
		return BlockUpperHalf, top, ColorNone
	case top == ColorNone:
		return BlockLowerHalf, bottom, ColorNone
	default:
		return BlockUpperHalf, top, bottom
	}
}

// RenderBorder frames the render area with a rounded border when the
// terminal is larger than the area on some axis.
func (c *Canvas) RenderBorder(w io.Writer) error {
	sides := c.offsetCol >= 1
	caps := c.offsetRow >= 1
	if !sides && !caps {
		return nil
	}

	b := lipgloss.RoundedBorder()
	left, right := c.offsetCol, c.offsetCol+c.termWidth+1
	top, bottom := c.offsetRow, c.offsetRow+c.termHeight+1

	var out []byte
	hline := func(row int, l, m, r string) {
		if sides {
			out = appendCursor(out, left, row)
			out = append(out, l...)
		} else {
			out = appendCursor(out, left+1, row)
		}
		for range c.termWidth {
			out = append(out, m...)
		}
		if sides {
			out = append(out, r...)
		}
	}
	if caps {
		hline(top, b.TopLeft, b.Top, b.TopRight)
		hline(bottom, b.BottomLeft, b.Bottom, b.BottomRight)
	}
	if sides {
		for row := top + 1; row < bottom; row++ {
			out = appendCursor(out, left, row)
			out = append(out, b.Left...)
			out = appendCursor(out, right, row)
			out = append(out, b.Right...)
		}
	}
	return writeChunks(w, out)
}

// TerminalWidth returns the actual terminal column count.
func (c *Canvas) TerminalWidth() int {
	return c.termWidth
}

// TerminalHeight returns the actual terminal row count.
func (c *Canvas) TerminalHeight() int {
	return c.termHeight
}

// LogicalToTerminal converts logical coordinates to 1-based terminal position (col, row).
// Useful for placing text overlays at positions matching canvas-drawn objects.
func (c *Canvas) LogicalToTerminal(x, y float64) (col, row int) {
	px := int(math.Round(x * c.scaleX))
	py := int(math.Round(y * c.scaleY))
	return px + 1, py/2 + 1
}

// BorrowPoints returns a reusable slice of Points with the given length.
// The returned slice is only valid until the next call to BorrowPoints.
func (c *Canvas) BorrowPoints(n int) []Point {
	if cap(c.polygonBuf) < n {
		c.polygonBuf = make([]Point, n)
	}
	return c.polygonBuf[:n]
}
