package worker

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"botherd/pkg/logging"
)

// tailLines is how many trailing output lines are kept for error reports.
const tailLines = 20

// outputForwarder copies a process' stdout and stderr into the log and keeps
// the last lines around for failed starts.
type outputForwarder struct {
	subsystem string

	stdoutReader *io.PipeReader
	stderrReader *io.PipeReader
	stdoutWriter *io.PipeWriter
	stderrWriter *io.PipeWriter

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu   sync.Mutex
	tail []string
}

func newOutputForwarder(alias string) *outputForwarder {
	of := &outputForwarder{
		subsystem: "Instance/" + alias,
	}

	of.stdoutReader, of.stdoutWriter = io.Pipe()
	of.stderrReader, of.stderrWriter = io.Pipe()

	of.wg.Add(2)
	go of.forward(of.stdoutReader, false)
	go of.forward(of.stderrReader, true)

	return of
}

func (of *outputForwarder) forward(reader io.Reader, stderr bool) {
	defer of.wg.Done()

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if stderr {
			logging.Warn(of.subsystem, "%s", line)
		} else {
			logging.Info(of.subsystem, "%s", line)
		}

		of.mu.Lock()
		of.tail = append(of.tail, line)
		if len(of.tail) > tailLines {
			of.tail = of.tail[len(of.tail)-tailLines:]
		}
		of.mu.Unlock()
	}
	// Drain whatever is left after an oversized line so the writer never blocks.
	_, _ = io.Copy(io.Discard, reader)
}

// close ends forwarding once the process has exited.
func (of *outputForwarder) close() {
	of.closeOnce.Do(func() {
		of.stdoutWriter.Close()
		of.stderrWriter.Close()
	})
	of.wg.Wait()
}

// lastLines returns the kept output tail joined by newlines.
func (of *outputForwarder) lastLines() string {
	of.mu.Lock()
	defer of.mu.Unlock()
	return strings.Join(of.tail, "\n")
}
