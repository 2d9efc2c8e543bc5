package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	v1 "github.com/packship/packship/apis/v1"
	"golang.org/x/term"
)

type interactiveCtxKeyType struct{}

var interactiveCtxKey = interactiveCtxKeyType{}

func isInteractiveEnvironment() bool {
	if os.Getenv("CI") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func withInteractive(ctx context.Context, interactive bool) context.Context {
	return context.WithValue(ctx, interactiveCtxKey, interactive)
}

func isInteractive(ctx context.Context) bool {
	interactive, ok := ctx.Value(interactiveCtxKey).(bool)
	if !ok {
		return false
	}
	return interactive
}

// confirm asks a yes/no question. Anything but "y" or "yes" is a no,
// including end of input.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	return confirmWith(bufio.NewReader(in), out, question)
}

func confirmWith(reader *bufio.Reader, out io.Writer, question string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s [y/N]: ", question); err != nil {
		return false, err
	}
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

var methodChoices = map[string]string{
	"1": "copy",
	"2": "sync",
	"3": "session",
}

// promptTarget asks for an ssh destination on the terminal. Every answer is
// required.
func promptTarget(in io.Reader, out io.Writer) (v1.Target, error) {
	reader := bufio.NewReader(in)
	ask := func(question string) (string, error) {
		fmt.Fprint(out, question)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read answer: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	fmt.Fprintln(out, "Transfer method:")
	fmt.Fprintln(out, "  1. copy    (scp, simple file copy)")
	fmt.Fprintln(out, "  2. sync    (rsync, incremental and resumable)")
	fmt.Fprintln(out, "  3. session (sftp batch)")
	choice, err := ask("Select a method (1-3): ")
	if err != nil {
		return v1.Target{}, err
	}
	method, ok := methodChoices[choice]
	if !ok {
		return v1.Target{}, fmt.Errorf("invalid choice %q", choice)
	}

	host, err := ask("Remote host: ")
	if err != nil {
		return v1.Target{}, err
	}
	user, err := ask("User: ")
	if err != nil {
		return v1.Target{}, err
	}
	remotePath, err := ask("Remote path (e.g. /home/user/): ")
	if err != nil {
		return v1.Target{}, err
	}
	if host == "" || user == "" || remotePath == "" {
		return v1.Target{}, fmt.Errorf("host, user and remote path are all required")
	}

	compress := false
	if method == "sync" {
		compress, err = confirmWith(reader, out, "Compress during transfer?")
		if err != nil {
			return v1.Target{}, err
		}
	}

	return v1.Target{
		Name:     method,
		Method:   method,
		Compress: compress,
		SSH:      &v1.SSHTarget{User: user, Host: host, Path: remotePath},
	}, nil
}
