package output

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/schollz/progressbar/v3"
)

// Out is where all CLI output goes. Progress rendering happens on another
// goroutine, so writes are serialized.
var Out io.Writer = &syncWriter{w: color.Output}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// SetOutput redirects CLI output to w
func SetOutput(w io.Writer) {
	Out = &syncWriter{w: w}
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(Out, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(Out, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(Out, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(Out, "Warning: "+msg+"\n", args...)
}

// Field is one labelled value in a record
type Field struct {
	Key   string
	Value interface{}
}

// PrintFields prints a record as aligned key/value lines, in order
func PrintFields(fields []Field) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)
	for _, f := range fields {
		bold.Fprint(w, f.Key+":")
		fmt.Fprintf(w, "\t%v\n", f.Value)
	}
	w.Flush()
}

// PrintJSON prints data as indented JSON
func PrintJSON(data interface{}) error {
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(Out, string(b))
	return err
}

// NewUploadBar renders byte progress for a single upload. The empty bar is
// drawn immediately; later updates are throttled.
func NewUploadBar(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(Out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(Out) }),
		progressbar.OptionClearOnFinish(),
	)
}
