// Package logwriter replaces the default loggo writer with one writing
// a size rotated file and forwarding warnings to a chat channel.
package logwriter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/loggo"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Sender queues a message without blocking, see telegram.Bot.
type Sender interface {
	Queue(txt string, disableNotification bool)
}

type writer struct {
	out    io.Writer
	sender Sender
	level  loggo.Level
}

// Setup installs the writer and applies logSpec. sender may be nil.
// The returned closer flushes and closes the log file.
func Setup(sender Sender, statePath, logSpec string) (io.Closer, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("os.Executable() failed: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   filepath.Join(statePath, filepath.Base(exe)+".log"),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		Compress:   true,
	}

	if err := install(newWriter(lj, sender)); err != nil {
		return nil, err
	}
	if err := loggo.ConfigureLoggers(logSpec); err != nil {
		return lj, fmt.Errorf("invalid log spec %q: %w", logSpec, err)
	}
	return lj, nil
}

func newWriter(out io.Writer, sender Sender) *writer {
	return &writer{
		out:    out,
		sender: sender,
		level:  loggo.WARNING,
	}
}

func install(w loggo.Writer) error {
	_, err := loggo.RemoveWriter("default")
	if err != nil {
		return err
	}

	return loggo.RegisterWriter("default", w)
}

func (w *writer) Write(e loggo.Entry) {
	line := w.formatEntry(e)

	fp := e.Filename
	if ix := strings.Index(fp, "planes-around/"); ix != -1 {
		fp = fp[ix+len("planes-around/"):]
	}

	l := fmt.Sprintf("%v%v:%v %v\n",
		e.Timestamp.Format("[2006-01-02 15:04:05] "),
		fp, e.Line,
		line,
	)
	if _, err := io.WriteString(w.out, l); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write log file: %v\n", err)
	}

	if w.sender != nil && e.Level >= w.level {
		// only criticals are loud
		w.sender.Queue(line, e.Level < loggo.CRITICAL)
	}
}

func (w *writer) formatEntry(e loggo.Entry) string {
	// who can remember the order of the levels right?
	// indicate the level like T1 for TRACE D2 for debug, etc
	return fmt.Sprintf(
		"[%v%v|%v:%v:%v] %v",
		string(e.Level.String()[0]),
		int(e.Level),
		e.Module,
		filepath.Base(e.Filename),
		e.Line,
		e.Message,
	)
}
