package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// Progress draws a single status line such as
// "⠹ Scanning subscriptions 3/12 (Prod)" while a long operation runs.
// It only draws on a terminal and never in JSON mode; the counters are
// kept either way. All methods are safe for concurrent use and on a nil
// receiver.
type Progress struct {
	w       io.Writer
	message string
	enabled bool

	mu    sync.Mutex
	total int
	done  int
	last  string
	frame int

	start   sync.Once
	finish  sync.Once
	running bool
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgress returns a progress line for w.
func NewProgress(w io.Writer, message string) *Progress {
	return &Progress{
		w:       w,
		message: message,
		enabled: !JSONMode && isTerminal(w),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Start begins redrawing the line. Only the first call has an effect.
func (p *Progress) Start() {
	if p == nil {
		return
	}
	p.start.Do(func() {
		if !p.enabled {
			return
		}
		p.mu.Lock()
		p.running = true
		p.mu.Unlock()
		go p.loop()
	})
}

func (p *Progress) loop() {
	defer close(p.stopped)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			p.mu.Lock()
			fmt.Fprint(p.w, "\r\033[K")
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.render()
		}
	}
}

// SetTotal sets the number of items the operation will process.
func (p *Progress) SetTotal(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.total = n
	p.mu.Unlock()
}

// Advance records one finished item, labelled on the status line.
func (p *Progress) Advance(label string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.done++
	p.last = label
	p.mu.Unlock()
}

func (p *Progress) line() string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	if NoColor() {
		frames = []string{"|", "/", "-", "\\"}
	}
	s := frames[p.frame%len(frames)] + " " + p.message
	if p.total > 0 {
		s += fmt.Sprintf(" %d/%d", p.done, p.total)
	}
	if p.last != "" {
		s += " (" + p.last + ")"
	}
	return s
}

func (p *Progress) render() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, "\r\033[K"+p.line())
	p.frame++
}

// Stop clears the line and waits for the redraw loop to exit. It is safe
// to call more than once.
func (p *Progress) Stop() {
	if p == nil {
		return
	}
	p.start.Do(func() {})
	p.finish.Do(func() {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if running {
			close(p.stop)
			<-p.stopped
		}
	})
}

// WithProgress runs fn under a progress line on w and logs the outcome.
func WithProgress(w io.Writer, message string, fn func(*Progress) error) error {
	p := NewProgress(w, message)
	p.Start()
	err := fn(p)
	p.Stop()
	if err != nil {
		Fail(message + " failed")
	} else {
		Success(message)
	}
	return err
}
