// Package terminal renders narration to a character stream.
package terminal

import (
	"fmt"
	"io"
	"sync"

	"SiteAuditor/internal/playback"
)

// Printer writes each revealed character as it arrives and ends lines with a newline.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
	err    error
}

var _ playback.Observer = (*Printer)(nil)

// NewPrinter writes to w, starting every line with prefix.
func NewPrinter(w io.Writer, prefix string) *Printer {
	return &Printer{w: w, prefix: prefix}
}

// LineStarted writes the prefix.
func (p *Printer) LineStarted() {
	p.write(p.prefix)
}

// RuneRevealed writes one character.
func (p *Printer) RuneRevealed(r rune) {
	p.write(string(r))
}

// LineCompleted terminates the line.
func (p *Printer) LineCompleted(string) {
	p.write("\n")
}

// Err returns the first write error, if any. Later writes are skipped once one failed.
func (p *Printer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Printer) write(s string) {
	if s == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if _, err := io.WriteString(p.w, s); err != nil {
		p.err = fmt.Errorf("write narration: %w", err)
	}
}
