package clicmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// ProgressReporter receives pull lifecycle notifications. Terminal
// rendering is deliberately out of scope; the default implementation just
// writes one line per event so the command output stays scriptable.
type ProgressReporter interface {
	Cached(spec string)
	Pulled(spec string, size int64, blobPath string)
	Done(count int, serverURL string)
}

type writerProgress struct {
	w io.Writer
}

// NewProgressReporter returns a line-per-event reporter writing to w.
func NewProgressReporter(w io.Writer) ProgressReporter {
	return &writerProgress{w: w}
}

func (p *writerProgress) Cached(spec string) {
	fmt.Fprintf(p.w, "cached %s (unchanged)\n", spec)
}

func (p *writerProgress) Pulled(spec string, size int64, blobPath string) {
	fmt.Fprintf(p.w, "pulled %s (%s) -> %s\n", spec, humanize.Bytes(uint64(size)), blobPath)
}

func (p *writerProgress) Done(count int, serverURL string) {
	fmt.Fprintf(p.w, "pulled %d source(s) from %s\n", count, serverURL)
}
