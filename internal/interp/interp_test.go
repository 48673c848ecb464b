package interp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterpolator(env map[string]string) *Interpolator {
	return New(Options{
		AllowCommands: true,
		Env: func(key string) string {
			return env[key]
		},
	})
}

func TestExpandVariables(t *testing.T) {
	ip := newTestInterpolator(map[string]string{
		"HOME": "/home/alice",
		"USER": "alice",
		"A1":   "one",
	})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no tokens", "plain text", "plain text"},
		{"bare variable", "$HOME/projects", "/home/alice/projects"},
		{"braced variable", "${USER}-dev", "alice-dev"},
		{"adjacent variables", "$USER@${HOME}", "alice@/home/alice"},
		{"unset variable", "$UNSET_VARIABLE", ""},
		{"unset braced", "pre-${UNSET_VARIABLE}-post", "pre--post"},
		{"digit after dollar", "$100", "$100"},
		{"trailing dollar", "price$", "price$"},
		{"empty braces", "${}", "${}"},
		{"invalid brace name", "${1BAD}", "${1BAD}"},
		{"unclosed brace", "${HOME", "${HOME"},
		{"digits in name", "$A1!", "one!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ip.Expand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandIdentityWithoutTokens(t *testing.T) {
	ip := New(Options{})
	in := "no dollars here at all"
	got, err := ip.Expand(in)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestExpandDoesNotRescanSubstitutedText(t *testing.T) {
	ip := newTestInterpolator(map[string]string{
		"OUTER": "$INNER",
		"INNER": "should never appear",
	})

	got, err := ip.Expand("value=$OUTER")
	require.NoError(t, err)
	assert.Equal(t, "value=$INNER", got)
}

func TestExpandCommand(t *testing.T) {
	ip := New(Options{AllowCommands: true})

	got, err := ip.Expand("$(echo hi)")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestExpandCommandOutputInsertedLiterally(t *testing.T) {
	ip := newTestInterpolator(map[string]string{"SECRET": "leaked"})

	got, err := ip.Expand(`$(printf '$SECRET')`)
	require.NoError(t, err)
	assert.Equal(t, "$SECRET", got)
}

func TestExpandCommandFailure(t *testing.T) {
	ip := New(Options{AllowCommands: true})

	_, err := ip.Expand("$(echo oops >&2; exit 3)")
	require.Error(t, err)

	var ierr *Error
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "echo oops >&2; exit 3", ierr.Command)
	assert.Contains(t, ierr.Stderr, "oops")
	assert.Contains(t, err.Error(), "echo oops")
}

func TestExpandCommandDisabled(t *testing.T) {
	ip := New(Options{AllowCommands: false})

	_, err := ip.Expand("$(echo hi)")
	require.Error(t, err)

	var ierr *Error
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, "echo hi", ierr.Command)
	assert.Contains(t, ierr.Reason, "disabled")
}

func TestExpandCommandTimeout(t *testing.T) {
	ip := New(Options{AllowCommands: true, Timeout: 50 * time.Millisecond})

	_, err := ip.Expand("$(sleep 2)")
	require.Error(t, err)

	var ierr *Error
	require.True(t, errors.As(err, &ierr))
	assert.Contains(t, ierr.Reason, "timed out")
}

func TestExpandEmptyAndUnclosedCommandStayLiteral(t *testing.T) {
	ip := New(Options{AllowCommands: true})

	got, err := ip.Expand("$() and $(true")
	require.NoError(t, err)
	assert.Equal(t, "$() and $(true", got)
}

func TestExpandMap(t *testing.T) {
	ip := newTestInterpolator(map[string]string{"PORT": "8080"})

	got, err := ip.ExpandMap(map[string]string{
		"addr":  "localhost:$PORT",
		"plain": "value",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"addr":  "localhost:8080",
		"plain": "value",
	}, got)
}

func TestExpandMapNil(t *testing.T) {
	ip := New(Options{})
	got, err := ip.ExpandMap(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
