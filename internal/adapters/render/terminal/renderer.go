package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/chimenet/internal/domain"
	"github.com/bnema/chimenet/internal/ports"
)

var ErrNothingPlayable = errors.New("no playable notes")

const bell = "\a"

// Renderer plays a ring on the terminal: one styled line per step, the
// terminal bell on the first one, and a pause of the note duration between
// steps.
type Renderer struct {
	out    io.Writer
	logger *slog.Logger
	bell   bool
	sleep  func(context.Context, time.Duration) error

	mu     sync.Mutex
	styles styles
}

type styles struct {
	header lipgloss.Style
	note   lipgloss.Style
	chord  lipgloss.Style
	freq   lipgloss.Style
}

type Option func(*Renderer)

func WithBell(enabled bool) Option {
	return func(r *Renderer) { r.bell = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSleep replaces the pause between steps.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Renderer) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

var _ ports.Renderer = (*Renderer)(nil)

func New(out io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		out:    out,
		logger: slog.Default(),
		bell:   true,
		sleep:  sleepContext,
		styles: styles{
			header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
			note:   lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
			chord:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
			freq:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

type step struct {
	label string
	chord bool
	tones []Tone
}

func (r *Renderer) Render(ctx context.Context, notes, chords []string, duration time.Duration) error {
	if duration <= 0 {
		duration = domain.DefaultNoteDuration
	}
	if len(notes) == 0 && len(chords) == 0 {
		notes = domain.DefaultMelody
	}

	steps := r.plan(notes, chords)
	if len(steps) == 0 {
		return fmt.Errorf("%w: notes %v chords %v", ErrNothingPlayable, notes, chords)
	}

	// Concurrent rings play one after the other rather than interleaving.
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprintln(r.out, r.styles.header.Render("Ding dong!")); err != nil {
		return fmt.Errorf("write ring header: %w", err)
	}
	for i, s := range steps {
		line := r.line(s)
		if i == 0 && r.bell {
			line = bell + line
		}
		if _, err := fmt.Fprintln(r.out, line); err != nil {
			return fmt.Errorf("write ring step: %w", err)
		}
		if err := r.sleep(ctx, duration); err != nil {
			return err
		}
	}

	return nil
}

func (r *Renderer) plan(notes, chords []string) []step {
	var steps []step
	for _, note := range notes {
		hz, ok := Frequency(note)
		if !ok {
			r.logger.Debug("skipping unknown note", "note", note)
			continue
		}
		steps = append(steps, step{label: note, tones: []Tone{{Name: note, Frequency: hz}}})
	}
	for _, chord := range chords {
		names := ChordNotes(chord)
		if len(names) == 0 {
			r.logger.Debug("skipping unknown chord", "chord", chord)
			continue
		}
		s := step{label: chord, chord: true}
		for _, name := range names {
			hz, _ := Frequency(name)
			s.tones = append(s.tones, Tone{Name: name, Frequency: hz})
		}
		steps = append(steps, s)
	}

	return steps
}

func (r *Renderer) line(s step) string {
	freqs := make([]string, 0, len(s.tones))
	for _, tone := range s.tones {
		freqs = append(freqs, fmt.Sprintf("%s %.2f Hz", tone.Name, tone.Frequency))
	}

	label := r.styles.note.Render("♪ " + s.label)
	if s.chord {
		label = r.styles.chord.Render("♫ " + s.label)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", r.styles.freq.Render("("+strings.Join(freqs, ", ")+")"))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
