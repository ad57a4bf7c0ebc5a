package draw

import (
	"io"
	"os"
	"strconv"

	"golang.org/x/term"
)

const (
	seqClear        = "\033[H\033[2J"
	seqHideCursor   = "\033[?25l"
	seqShowCursor   = "\033[?25h"
	seqAltScreenOn  = "\033[?1049h"
	seqAltScreenOff = "\033[?1049l"
)

// ChunkWriter collects one frame of cursor-addressed text and sends it in
// packets no larger than the canvas uses, so SSH sessions see few small writes.
// Coordinates are 1-based and relative to the render area.
type ChunkWriter struct {
	w      io.Writer
	buf    []byte
	offCol int
	offRow int
}

// NewChunkWriter creates a ChunkWriter for w whose render area starts after
// offsetCol columns and offsetRow rows.
func NewChunkWriter(w io.Writer, offsetCol, offsetRow int) *ChunkWriter {
	return &ChunkWriter{w: w, buf: make([]byte, 0, 4096), offCol: offsetCol, offRow: offsetRow}
}

// SetOffset moves the render area, e.g. after a resize.
func (cw *ChunkWriter) SetOffset(offsetCol, offsetRow int) {
	cw.offCol, cw.offRow = offsetCol, offsetRow
}

// MoveCursor queues a cursor move to col, row of the render area.
func (cw *ChunkWriter) MoveCursor(col, row int) {
	cw.buf = append(cw.buf, "\033["...)
	cw.buf = strconv.AppendInt(cw.buf, int64(row+cw.offRow), 10)
	cw.buf = append(cw.buf, ';')
	cw.buf = strconv.AppendInt(cw.buf, int64(col+cw.offCol), 10)
	cw.buf = append(cw.buf, 'H')
}

// Write queues p. It never fails; errors surface on Flush.
func (cw *ChunkWriter) Write(p []byte) (int, error) {
	cw.buf = append(cw.buf, p...)
	return len(p), nil
}

func (cw *ChunkWriter) WriteString(s string) {
	cw.buf = append(cw.buf, s...)
}

// WriteAt queues s at col, row of the render area.
func (cw *ChunkWriter) WriteAt(col, row int, s string) {
	cw.MoveCursor(col, row)
	cw.buf = append(cw.buf, s...)
}

// Clear queues a full terminal clear. The next canvas render must be forced.
func (cw *ChunkWriter) Clear() {
	cw.buf = append(cw.buf, seqClear...)
}

// Pending reports how many bytes are queued.
func (cw *ChunkWriter) Pending() int {
	return len(cw.buf)
}

// Flush sends everything queued and empties the buffer, even on error.
func (cw *ChunkWriter) Flush() error {
	defer func() { cw.buf = cw.buf[:0] }()
	return writeChunks(cw.w, cw.buf)
}

var _ io.Writer = (*ChunkWriter)(nil)

// TermSizeFunc reports the terminal dimensions in cells.
type TermSizeFunc func() (width, height int, err error)

// DefaultTermSizeFunc reads the size of the local terminal on stdout.
var DefaultTermSizeFunc TermSizeFunc = func() (int, int, error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

func ClearScreen(w io.Writer)   { io.WriteString(w, seqClear) }
func HideCursor(w io.Writer)    { io.WriteString(w, seqHideCursor) }
func ShowCursor(w io.Writer)    { io.WriteString(w, seqShowCursor) }
func EnterAltScreen(w io.Writer) { io.WriteString(w, seqAltScreenOn) }
func ExitAltScreen(w io.Writer)  { io.WriteString(w, seqAltScreenOff) }

// FitSize caps the render area at maxWidth x maxHeight and centers it in the
// terminal.
func FitSize(termWidth, termHeight, maxWidth, maxHeight int) (renderWidth, renderHeight, offsetCol, offsetRow int) {
	renderWidth = min(termWidth, maxWidth)
	renderHeight = min(termHeight, maxHeight)
	return renderWidth, renderHeight, (termWidth - renderWidth) / 2, (termHeight - renderHeight) / 2
}
