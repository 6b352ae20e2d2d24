package memorywriter

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Helper package that writes detailed logs to memory, rotates old
// lines, but remembers some lines from the start. Useful for verbose
// logging that would take too much memory if kept whole.
//
// Contact frame callbacks arrive on threads the native subsystem owns,
// so the writer is safe for concurrent use.

// to prevent possible memory issues, hardcode max line length
const maxLineLength = 500

type MemoryWriter struct {
	mutex        sync.Mutex
	maxLineCount int
	lines        [][]byte // lines include newlines
	startCount   int
	startLines   [][]byte
	startTime    time.Time
	printTime    bool
	out          io.Writer // optional tee for verbose runs, may be nil
}

func New(size, startSize int, printTime bool, out io.Writer) (*MemoryWriter, error) {
	if size <= 0 || startSize < 0 {
		return nil, errors.New("memorywriter: nonsense line counts")
	}
	return &MemoryWriter{
		maxLineCount: size,
		lines:        make([][]byte, 0, size),
		startCount:   startSize,
		startLines:   make([][]byte, 0, startSize),
		startTime:    time.Now(),
		printTime:    printTime,
		out:          out,
	}, nil
}

// Log writes one line, prefixed with the calling function, so the
// detailed log reads like a trace without each caller repeating itself.
func (m *MemoryWriter) Log(s string) {
	prefix := "?"
	if pc, _, _, ok := runtime.Caller(1); ok {
		if f := runtime.FuncForPC(pc); f != nil {
			name := f.Name()
			prefix = name[strings.LastIndex(name, "/")+1:]
		}
	}
	m.Println(prefix + " - " + s)
}

func (m *MemoryWriter) Println(s string) {
	long := []byte(s + "\n")
	_, err := m.Write(long)
	if err != nil {
		// give up, just print on stdout
		fmt.Println(err)
	}
}

// Write remembers lines in memory
func (m *MemoryWriter) Write(p []byte) (int, error) {
	if len(p) > maxLineLength {
		return 0, errors.New("input too long")
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	var newline []byte
	if !m.printTime {
		newline = make([]byte, len(p))
		copy(newline, p)
	} else {
		elapsed := time.Since(m.startTime)
		newline = []byte(fmt.Sprintf("[%.6f : %s] %s",
			elapsed.Seconds(), time.Now().Format("15:04:05"), string(p)))
	}

	if m.out != nil {
		_, err := m.out.Write(newline)
		if err != nil {
			return 0, err
		}
	}

	if len(m.startLines) < m.startCount {
		// do not rotate
		m.startLines = append(m.startLines, newline)
	} else {
		// rotate
		for len(m.lines) >= m.maxLineCount {
			m.lines = m.lines[1:]
		}
		m.lines = append(m.lines, newline)
	}
	return len(p), nil
}

// Exports lines to a writer, plus adds additional text on top.
// In our case, additional text is the daemon version and device list.
func (m *MemoryWriter) writeTo(start string, w io.Writer) error {
	_, err := w.Write([]byte(start))
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	// Write end lines (latest on up)
	for i := len(m.lines) - 1; i >= 0; i-- {
		_, err = w.Write(m.lines[i])
		if err != nil {
			return err
		}
	}

	// ... to make space between start and end
	_, err = w.Write([]byte("...\n"))
	if err != nil {
		return err
	}

	// Write start lines
	for i := len(m.startLines) - 1; i >= 0; i-- {
		_, err = w.Write(m.startLines[i])
		if err != nil {
			return err
		}
	}

	return nil
}

// String exports as string
func (m *MemoryWriter) String(start string) (string, error) {
	var b bytes.Buffer
	err := m.writeTo(start, &b)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Gzip exports as GZip bytes
func (m *MemoryWriter) Gzip(start string) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}

	gw.Name = "log.txt"
	err = m.writeTo(start, gw)
	if err != nil {
		return nil, err
	}

	err = gw.Close()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
