// Package pump moves a process's combined output into a log sink without
// involving the lifecycle goroutine.
package pump

import (
	"bufio"
	"io"
	"strings"
)

// Sink receives output lines in arrival order. Appends are synchronous; a
// slow sink stalls the pump, which in turn lets the producing process's own
// stdout buffer fill. That backpressure is accepted, not treated as an error.
type Sink interface {
	Append(line string)
}

// maxLineSize bounds a single output line. Installer tools occasionally emit
// very long progress lines; anything beyond this is split, not dropped.
const maxLineSize = 1024 * 1024

// Run reads r line-by-line and forwards each line to sink until end-of-stream.
// It is intended to run on its own goroutine per started process; its return
// is the signal that the process's output is finished. The caller still waits
// on the process handle separately for the exit code.
func Run(r io.Reader, sink Sink) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		sink.Append(strings.TrimRight(scanner.Text(), "\r"))
	}
	return scanner.Err()
}

// Func adapts a function to the Sink interface.
type Func func(line string)

func (f Func) Append(line string) { f(line) }
