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

// ErrEmptyInput is returned when a required prompt gets no answer.
var ErrEmptyInput = errors.New("no input provided")

// promptReader is shared by all prompts of one invocation so that buffered
// input from a pipe is not lost between questions.
var (
	promptReader *bufio.Reader
	promptSource io.Reader
)

func reader(in io.Reader) *bufio.Reader {
	if promptReader == nil || promptSource != in {
		promptReader = bufio.NewReader(in)
		promptSource = in
	}
	return promptReader
}

// readLine prints prompt to out and reads one trimmed line from in.
func readLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := reader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readLineDefault is readLine that falls back to def on an empty answer.
func readLineDefault(in io.Reader, out io.Writer, label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	v, err := readLine(in, out, prompt)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if v == "" {
		return def, nil
	}
	return v, nil
}

// readPassword reads a secret without echo when in is a terminal, and a
// plain line otherwise (pipes, tests).
func readPassword(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	v, err := readLine(in, out, prompt)
	if err != nil {
		return "", err
	}
	return v, nil
}

// confirm asks a yes/no question. Anything but y/yes is no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	v, err := readLine(in, out, question+" [y/N]: ")
	if err != nil {
		return false
	}
	v = strings.ToLower(v)
	return v == "y" || v == "yes"
}
