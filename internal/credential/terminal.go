package credential

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal asks on out and reads answers line by line from in, mirroring the
// "Configure now?" flow: a negative first answer declines without asking for
// the key. When in is an interactive terminal the key is read without echo.
type Terminal struct {
	In  io.Reader
	Out io.Writer
	// Service names the provider in the questions, e.g. "SambaNova".
	Service string
}

func (t Terminal) Prompt(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	svc := t.Service
	if svc == "" {
		svc = "API"
	}
	r := bufio.NewReader(t.In)

	fmt.Fprintf(t.Out, "%s API key is not configured. Configure now? [y/N]: ", svc)
	yes, err := readLine(r)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(yes) {
	case "y", "yes":
	default:
		return "", nil
	}

	fmt.Fprintf(t.Out, "Enter your %s API key: ", svc)
	if fd, ok := terminalFd(t.In); ok {
		key, err := term.ReadPassword(fd)
		fmt.Fprintln(t.Out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(key)), nil
	}
	return readLine(r)
}

// terminalFd reports the descriptor of in when it is an interactive terminal.
func terminalFd(in io.Reader) (int, bool) {
	f, ok := in.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
