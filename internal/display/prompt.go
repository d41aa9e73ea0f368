package display

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// PromptConfirmer asks y/N questions on a line-oriented terminal.
// Anything other than "y" or "yes" declines, as does EOF or a cancelled context.
//
// At most one read is outstanding. A prompt abandoned by its context leaves
// that read running, and the next prompt receives the line it returns.
type PromptConfirmer struct {
	out    io.Writer
	reader *bufio.Reader
	lines  chan string

	mu      sync.Mutex
	pending bool
}

// NewPromptConfirmer reads answers from in and writes prompts to out.
func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{out: out, reader: bufio.NewReader(in), lines: make(chan string, 1)}
}

func (p *PromptConfirmer) Confirm(ctx context.Context, prompt string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprintf(p.out, "%s [y/N]: ", prompt)

	if !p.pending {
		p.pending = true
		go p.readLine()
	}

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(p.out)
		return false
	case line := <-p.lines:
		p.pending = false
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// readLine delivers one line; on EOF or error whatever was read so far.
func (p *PromptConfirmer) readLine() {
	line, _ := p.reader.ReadString('\n')
	p.lines <- line
}
