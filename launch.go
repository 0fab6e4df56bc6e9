package appcache

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoExec is returned when launching an app that has no command.
var ErrNoExec = errors.New("application has no exec command")

// Updater records a launch of an application, both Cache and Guarded satisfy it.
type Updater interface {
	Update(selected App) error
}

// ExecLauncher starts applications by running their Exec command line.
type ExecLauncher struct {
	Env  []string // Env is appended to the current environment
	URIs []string // URIs are passed to apps that accept files or URLs
}

// Launch starts app and does not wait for it to exit.
func (l ExecLauncher) Launch(app App) error {
	fields, err := splitExec(app.Exec)
	if err != nil {
		return fmt.Errorf("parse exec of %s: %w", app.ID, err)
	}
	args := extractArgs(fields, l.URIs)
	if len(args) == 0 {
		return ErrNoExec
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), l.Env...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", app.ID, err)
	}
	return cmd.Process.Release()
}

// LaunchAndRecord launches app and, once it has started, counts the launch in the cache.
func LaunchAndRecord(l Launcher, u Updater, app App) error {
	if err := l.Launch(app); err != nil {
		return err
	}
	return u.Update(app)
}

// extractArgs expands the desktop entry field codes in params.
// %u and %f take the first uri, %U and %F take all of them, other codes are dropped.
func extractArgs(params, uris []string) []string {
	args := make([]string, 0, len(params))
	for _, p := range params {
		switch p {
		case "%u", "%f":
			if len(uris) > 0 {
				args = append(args, uris[0])
			}
		case "%U", "%F":
			args = append(args, uris...)
		case "%i", "%c", "%k", "%d", "%D", "%n", "%N", "%v", "%m":
			// deprecated or not supported
		default:
			args = append(args, strings.ReplaceAll(p, "%%", "%"))
		}
	}
	return args
}

// splitExec splits an Exec value into fields, honouring quotes and backslash escapes.
func splitExec(line string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		inField bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inField = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inField = true
		case r == ' ' || r == '\t':
			if inField {
				fields = append(fields, current.String())
				current.Reset()
				inField = false
			}
		default:
			current.WriteRune(r)
			inField = true
		}
	}

	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inField {
		fields = append(fields, current.String())
	}
	return fields, nil
}
