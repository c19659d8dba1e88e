// Package clip copies rendered plans to the clipboard.
package clip

import (
	"errors"
	"fmt"
	"io"
	"os"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method is how the text was made available.
type Method string

const (
	MethodNative Method = "native"
	MethodOSC52  Method = "osc52"
	// MethodFile means no clipboard was reachable and the text was written
	// to a temp file instead.
	MethodFile Method = "file"
)

// Result describes a copy.
type Result struct {
	Method   Method
	FilePath string
}

// Terminals differ in how much OSC52 payload they accept.
const osc52LimitBytes = 100_000

// Copier tries the native clipboard, then the terminal, then a temp file.
type Copier struct {
	native   func(string) error
	terminal io.Writer
	isTTY    func() bool
	getenv   func(string) string
	tempDir  string
}

// New returns a Copier writing terminal sequences to stderr, which keeps
// stdout free for the command output.
func New() *Copier {
	return &Copier{
		native:   atotto.WriteAll,
		terminal: os.Stderr,
		isTTY:    func() bool { return term.IsTerminal(int(os.Stderr.Fd())) },
		getenv:   os.Getenv,
	}
}

// Copy makes text available through the first method that works.
func (c *Copier) Copy(text string) (Result, error) {
	if text == "" {
		return Result{}, errors.New("nothing to copy")
	}
	if c.native != nil && c.native(text) == nil {
		return Result{Method: MethodNative}, nil
	}
	if c.copyOSC52(text) == nil {
		return Result{Method: MethodOSC52}, nil
	}
	path, err := c.writeTemp(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

func (c *Copier) copyOSC52(text string) error {
	if c.terminal == nil || c.isTTY == nil || !c.isTTY() {
		return errors.New("no terminal attached")
	}
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52LimitBytes)
	}

	seq := osc52.New(text).Limit(osc52LimitBytes)
	switch {
	case c.getenv("TMUX") != "":
		seq = seq.Tmux()
	case c.getenv("STY") != "":
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(c.terminal)
	return err
}

func (c *Copier) writeTemp(text string) (string, error) {
	f, err := os.CreateTemp(c.tempDir, "visualix-plan-*.md")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
