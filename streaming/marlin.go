// Package streaming sends a filtered command stream to a Marlin-style
// printer over a serial port, one command per firmware acknowledgement.
package streaming

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	serial "github.com/joushou/goserial"
)

type Result struct {
	level   string
	message string
}

// MarlinStreamer drives a printer speaking the Marlin serial protocol: every
// command line is answered with "ok", transient "busy" notices may precede
// it, and "Error:" aborts the job.
type MarlinStreamer struct {
	log        *slog.Logger
	serialPort io.ReadWriteCloser
	reader     *bufio.Reader
	writer     *bufio.Writer
}

// NewMarlinStreamer builds a streamer logging protocol chatter to log.
func NewMarlinStreamer(log *slog.Logger) *MarlinStreamer {
	return &MarlinStreamer{log: log}
}

func parseResult(line string) Result {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == "ok" || strings.HasPrefix(line, "ok "):
		return Result{"ok", strings.TrimPrefix(line, "ok ")}
	case strings.HasPrefix(line, "Error:"):
		return Result{"error", line[len("Error:"):]}
	case strings.HasPrefix(line, "!!"):
		return Result{"error", strings.TrimSpace(line[2:])}
	case strings.HasPrefix(line, "echo:busy:"):
		return Result{"busy", line[len("echo:busy:"):]}
	case line == "":
		return Result{"empty", ""}
	}
	return Result{"info", line}
}

func (s *MarlinStreamer) readResult() Result {
	c, err := s.reader.ReadBytes('\n')
	if err != nil {
		return Result{"serial-error", err.Error()}
	}
	return parseResult(string(c))
}

// Connect opens the serial port and waits for the firmware to finish its
// reset banner.  Marlin prints "start" once it is ready for commands; some
// forks only emit echo chatter, so a quiet line pause also counts as ready.
func (s *MarlinStreamer) Connect(name string, baud int) error {
	c := &serial.Config{Name: name, Baud: baud}
	var err error
	s.serialPort, err = serial.OpenPort(c)
	if err != nil {
		return err
	}

	s.reader = bufio.NewReader(s.serialPort)
	s.writer = bufio.NewWriter(s.serialPort)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("streaming: waiting for printer: %w", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		s.log.Debug("printer banner", "line", trimmed)
		if trimmed == "start" {
			return nil
		}
	}
	return errors.New("streaming: printer did not report ready")
}

// Stop closes the connection.
func (s *MarlinStreamer) Stop() {
	if s.serialPort != nil {
		s.serialPort.Close()
	}
}

// Send streams the given command lines in lockstep, reporting each
// acknowledged line on progress.  The progress channel is closed when the
// stream ends.
func (s *MarlinStreamer) Send(lines []string, progress chan int) error {
	defer close(progress)

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			progress <- i
			continue
		}

		if _, err := s.writer.WriteString(trimmed + "\n"); err != nil {
			return fmt.Errorf("streaming: send: %w", err)
		}
		if err := s.writer.Flush(); err != nil {
			return fmt.Errorf("streaming: flush: %w", err)
		}

		if err := s.awaitOk(); err != nil {
			return err
		}
		progress <- i
	}
	return nil
}

// awaitOk consumes responses until the firmware acknowledges the last
// command.
func (s *MarlinStreamer) awaitOk() error {
	for {
		res := s.readResult()
		switch res.level {
		case "ok":
			return nil
		case "busy":
			s.log.Debug("printer busy", "state", res.message)
		case "info", "empty":
			if res.message != "" {
				s.log.Debug("printer message", "line", res.message)
			}
		case "error":
			return fmt.Errorf("streaming: printer error: %s", res.message)
		case "serial-error":
			return fmt.Errorf("streaming: serial: %s", res.message)
		}
	}
}
