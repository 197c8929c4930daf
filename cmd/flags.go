package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

// bindFlags maps config keys to flags. A flag only overrides the config when
// it was set on the command line.
func bindFlags(app *app, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if flag := flags.Lookup(name); flag != nil {
			_ = app.config.BindPFlag(key, flag)
		}
	}
}

// splitList accepts "C4,E4 G4" style lists.
func splitList(raw []string) []string {
	var out []string
	for _, item := range raw {
		out = append(out, strings.FieldsFunc(item, func(r rune) bool { return r == ',' || r == ' ' })...)
	}

	return out
}

// lockedWriter serializes writes from the shell, the node observer and the
// renderer onto one output.
type lockedWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func newLockedWriter(out io.Writer) *lockedWriter {
	return &lockedWriter{out: out}
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}

func (w *lockedWriter) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
