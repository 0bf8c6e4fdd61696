package presenter

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/datagen/internal/run"
)

// Console renders run notices and progress as plain terminal text
type Console struct {
	Out io.Writer

	mu       sync.Mutex
	lastLine string
}

func New(out io.Writer) *Console {
	return &Console{Out: out}
}

// Notice prints one notice with a prefix for its kind.
func (c *Console) Notice(n run.Notice) {
	msg := n.Message
	if msg == "" && n.Reason != "" {
		msg = string(n.Reason)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.Out, "%s %s\n", prefix(n.Kind), msg)
}

func prefix(k run.NoticeKind) string {
	switch k {
	case run.NoticeSuccess:
		return "✅"
	case run.NoticeWarning:
		return "⚠"
	}
	return "❌"
}

// State prints a progress line whenever phase or progress changes.
func (c *Console) State(s run.State) {
	line := ProgressLine(s)
	c.mu.Lock()
	defer c.mu.Unlock()
	if line == c.lastLine {
		return
	}
	c.lastLine = line
	fmt.Fprintln(c.Out, line)
}

// ProgressLine formats the phase and its progress marker.
func ProgressLine(s run.State) string {
	return fmt.Sprintf("[%3d%%] %s", s.Progress, s.Phase)
}

// Summary prints the final result as an aligned table.
func (c *Console) Summary(s run.State, saved []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	artifact := s.OutputArtifact
	if artifact == "" {
		artifact = "none"
	}
	tw := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "phase\t%s\n", s.Phase)
	fmt.Fprintf(tw, "progress\t%d%%\n", s.Progress)
	fmt.Fprintf(tw, "success\t%d\n", s.SuccessCount)
	fmt.Fprintf(tw, "failed\t%d\n", s.FailureCount)
	fmt.Fprintf(tw, "artifact\t%s\n", artifact)
	for _, p := range saved {
		fmt.Fprintf(tw, "saved\t%s\n", p)
	}
	return tw.Flush()
}
