package app

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"mediasort/internal/media"
)

// progressInterval throttles redraws of the progress line.
const progressInterval = 100 * time.Millisecond

// termProgress draws a single self-overwriting progress line.
type termProgress struct {
	w       io.Writer
	now     func() time.Time
	label   string
	total   int
	done    int
	started time.Time
	drawn   time.Time
}

// newProgress returns a terminal progress line when f is a terminal and a
// no-op otherwise.
func newProgress(f *os.File) media.Progress {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return media.NopProgress{}
	}
	return &termProgress{w: f, now: time.Now}
}

func (p *termProgress) Start(label string, total int) {
	p.label = label
	p.total = total
	p.done = 0
	p.started = p.now()
	p.drawn = time.Time{}
	p.draw(true)
}

func (p *termProgress) Advance(string) {
	p.done++
	p.draw(p.done == p.total)
}

func (p *termProgress) Finish() {
	p.draw(true)
	fmt.Fprintln(p.w)
}

func (p *termProgress) draw(force bool) {
	now := p.now()
	if !force && now.Sub(p.drawn) < progressInterval {
		return
	}
	p.drawn = now
	fmt.Fprintf(p.w, "\r\033[K%s: %s/%s (%s)",
		p.label,
		humanize.Comma(int64(p.done)),
		humanize.Comma(int64(p.total)),
		now.Sub(p.started).Truncate(time.Second),
	)
}

var _ media.Progress = (*termProgress)(nil)
