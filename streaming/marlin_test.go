package streaming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseResult(t *testing.T) {
	cases := []struct {
		line    string
		level   string
		message string
	}{
		{"ok\r\n", "ok", ""},
		{"ok T:210.0\n", "ok", "T:210.0"},
		{"Error:Printer halted. kill() called!\n", "error", "Printer halted. kill() called!"},
		{"!! something broke\n", "error", "something broke"},
		{"echo:busy: processing\n", "busy", " processing"},
		{"echo:Unknown command: \"G99\"\n", "info", "echo:Unknown command: \"G99\""},
		{"\r\n", "empty", ""},
	}

	for _, c := range cases {
		res := parseResult(c.line)
		assert.Equal(t, c.level, res.level, c.line)
		assert.Equal(t, c.message, res.message, c.line)
	}
}
