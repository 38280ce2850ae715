package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// passwordEnv supplies the password non-interactively.
const passwordEnv = "TEAMBOND_PASSWORD"

var (
	okMark   = color.GreenString("✓")
	errMark  = color.RedString("✗")
	warnMark = color.YellowString("!")
	arrow    = color.CyanString("→")

	stdin = bufio.NewReader(os.Stdin)
)

func startSpinner(msg string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + msg
	s.Start()
	return s
}

func stopSpinner(s *spinner.Spinner, final string) {
	s.FinalMSG = final + "\n"
	s.Stop()
}

// readLine prints prompt to stderr and reads one line from stdin.
func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads a password from the environment, the terminal without
// echo, or a line of stdin, in that order.
func readSecret(prompt string) (string, error) {
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return readLine(prompt)
}
