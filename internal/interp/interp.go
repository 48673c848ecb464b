package interp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Error reports a $(command) substitution that could not be performed.
type Error struct {
	Command string
	Stderr  string
	Reason  string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("command substitution $(%s) failed: %s", e.Command, e.Reason)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Options configure an Interpolator.
type Options struct {
	// AllowCommands enables $(command) substitution. When off, a command
	// token fails the expansion instead of executing anything.
	AllowCommands bool

	// Timeout bounds each substituted command. Zero means unbounded.
	Timeout time.Duration

	// Env overrides variable lookup. Nil means os.Getenv.
	Env func(string) string
}

// Interpolator expands $VAR, ${VAR} and $(command) tokens inside
// configuration strings.
type Interpolator struct {
	allowCommands bool
	timeout       time.Duration
	env           func(string) string
}

func New(opts Options) *Interpolator {
	env := opts.Env
	if env == nil {
		env = os.Getenv
	}
	return &Interpolator{
		allowCommands: opts.AllowCommands,
		timeout:       opts.Timeout,
		env:           env,
	}
}

// Expand rewrites s in a single left-to-right pass. Substituted text is
// inserted literally and never re-scanned, so expansion cannot loop.
// An unset variable becomes an empty string; a failing command aborts the
// whole expansion. A $ that does not start a well-formed token stays
// literal.
func (ip *Interpolator) Expand(s string) (string, error) {
	if !strings.ContainsRune(s, '$') {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '$' || i == len(s)-1 {
			b.WriteByte(c)
			i++
			continue
		}
		rest := s[i+1:]
		switch {
		case rest[0] == '{':
			end := strings.IndexByte(rest, '}')
			if end < 0 || !isName(rest[1:end]) {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteString(ip.env(rest[1:end]))
			i += end + 2
		case rest[0] == '(':
			end := strings.IndexByte(rest, ')')
			if end < 0 || end == 1 {
				b.WriteByte(c)
				i++
				continue
			}
			out, err := ip.command(rest[1:end])
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			i += end + 2
		case isNameStart(rest[0]):
			j := 1
			for j < len(rest) && isNameByte(rest[j]) {
				j++
			}
			b.WriteString(ip.env(rest[:j]))
			i += j + 1
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// ExpandMap expands every value of m into a new map. Keys are untouched.
func (ip *Interpolator) ExpandMap(m map[string]string) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		expanded, err := ip.Expand(v)
		if err != nil {
			return nil, err
		}
		out[k] = expanded
	}
	return out, nil
}

func (ip *Interpolator) command(command string) (string, error) {
	if !ip.allowCommands {
		return "", &Error{Command: command, Reason: "command interpolation is disabled"}
	}

	ctx := context.Background()
	if ip.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ip.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		reason := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("timed out after %s", ip.timeout)
		}
		return "", &Error{Command: command, Stderr: stderr.String(), Reason: reason}
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

func isNameStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || ('0' <= c && c <= '9')
}

func isName(s string) bool {
	if s == "" || !isNameStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return true
}
