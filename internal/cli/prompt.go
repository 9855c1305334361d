package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errNoInput = errors.New("no input available")

// promptSecret reads a line without echo when stdin is a terminal and
// falls back to a plain line read otherwise.
func promptSecret(env *Env, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)

	if f, ok := env.stdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	return env.readLine()
}

// promptLine reads a single visible line.
func promptLine(env *Env, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	return env.readLine()
}

func (e *Env) readLine() (string, error) {
	if e.lines == nil {
		e.lines = bufio.NewReader(e.stdin())
	}
	line, err := e.lines.ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return "", errNoInput
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (e *Env) stdin() io.Reader {
	if e.Stdin == nil {
		return os.Stdin
	}
	return e.Stdin
}
