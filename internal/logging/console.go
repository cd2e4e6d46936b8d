package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"trackcanon/internal/shared"
)

// Console prints colored, human oriented messages and mirrors each one
// into the structured logger.
type Console struct {
	mu         sync.Mutex
	out        io.Writer
	structured *slog.Logger
	debugMode  bool
}

// NewConsole creates a console logger writing to stdout.
func NewConsole(structured *slog.Logger) *Console {
	return &Console{out: os.Stdout, structured: OrDiscard(structured)}
}

// SetOutput redirects console output.
func (c *Console) SetOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

func (c *Console) Info(message string, args ...interface{}) {
	msg := fmt.Sprintf(message, args...)
	c.print(shared.ColorInfo.Sprint(msg))
	c.structured.Info(msg)
}

func (c *Console) Warning(message string, args ...interface{}) {
	msg := fmt.Sprintf(message, args...)
	c.print(shared.ColorWarning.Sprint("⚠️ " + msg))
	c.structured.Warn(msg)
}

func (c *Console) Error(message string, args ...interface{}) {
	msg := fmt.Sprintf(message, args...)
	c.print(shared.ColorError.Sprint("❌ " + msg))
	c.structured.Error(msg)
}

func (c *Console) Debug(message string, args ...interface{}) {
	msg := fmt.Sprintf(message, args...)
	c.structured.Debug(msg)
	if !c.DebugMode() {
		return
	}
	c.print(shared.ColorDebug.Sprint("🐛 DEBUG: " + msg))
}

func (c *Console) Success(message string, args ...interface{}) {
	msg := fmt.Sprintf(message, args...)
	c.print(shared.ColorSuccess.Sprint("✅ " + msg))
	c.structured.Info(msg)
}

func (c *Console) SetDebugMode(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.debugMode = enabled
}

func (c *Console) DebugMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.debugMode
}

func (c *Console) print(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}
