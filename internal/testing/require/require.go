// Package require wraps testify/require so that assertion failures point at
// the caller instead of this package, and adds a few helpers used across
// this repository's tests.
package require

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func Equal(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, expected, actual, msgAndArgs...)
}

func Equalf(t *testing.T, expected, actual interface{}, format string, args ...interface{}) {
	t.Helper()
	require.Equalf(t, expected, actual, format, args...)
}

func EqualValues(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.EqualValues(t, expected, actual, msgAndArgs...)
}

func NotEqual(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotEqual(t, expected, actual, msgAndArgs...)
}

func NoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.NoError(t, err, msgAndArgs...)
}

func NoErrorf(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	require.NoErrorf(t, err, format, args...)
}

func Error(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
}

func Errorf(t *testing.T, err error, format string, args ...interface{}) {
	t.Helper()
	require.Errorf(t, err, format, args...)
}

func EqualError(t *testing.T, err error, expected string, msgAndArgs ...interface{}) {
	t.Helper()
	require.EqualError(t, err, expected, msgAndArgs...)
}

func ErrorContains(t *testing.T, err error, substr string, msgAndArgs ...interface{}) {
	t.Helper()
	require.ErrorContains(t, err, substr, msgAndArgs...)
}

func ErrorIs(t *testing.T, err, target error, msgAndArgs ...interface{}) {
	t.Helper()
	require.ErrorIs(t, err, target, msgAndArgs...)
}

func ErrorIsf(t *testing.T, err, target error, format string, args ...interface{}) {
	t.Helper()
	require.ErrorIsf(t, err, target, format, args...)
}

func ErrorAs(t *testing.T, err error, target interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.ErrorAs(t, err, target, msgAndArgs...)
}

func True(t *testing.T, value bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.True(t, value, msgAndArgs...)
}

func Truef(t *testing.T, value bool, format string, args ...interface{}) {
	t.Helper()
	require.Truef(t, value, format, args...)
}

func False(t *testing.T, value bool, msgAndArgs ...interface{}) {
	t.Helper()
	require.False(t, value, msgAndArgs...)
}

func Falsef(t *testing.T, value bool, format string, args ...interface{}) {
	t.Helper()
	require.Falsef(t, value, format, args...)
}

func Nil(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Nil(t, object, msgAndArgs...)
}

func NotNil(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotNil(t, object, msgAndArgs...)
}

func NotNilf(t *testing.T, object interface{}, format string, args ...interface{}) {
	t.Helper()
	require.NotNilf(t, object, format, args...)
}

func Zero(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Zero(t, object, msgAndArgs...)
}

func NotZero(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotZero(t, object, msgAndArgs...)
}

func Len(t *testing.T, object interface{}, length int, msgAndArgs ...interface{}) {
	t.Helper()
	require.Len(t, object, length, msgAndArgs...)
}

func Empty(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Empty(t, object, msgAndArgs...)
}

func Emptyf(t *testing.T, object interface{}, format string, args ...interface{}) {
	t.Helper()
	require.Emptyf(t, object, format, args...)
}

func NotEmpty(t *testing.T, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotEmpty(t, object, msgAndArgs...)
}

func Contains(t *testing.T, s, contains interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Contains(t, s, contains, msgAndArgs...)
}

func NotContains(t *testing.T, s, contains interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotContains(t, s, contains, msgAndArgs...)
}

func ElementsMatch(t *testing.T, listA, listB interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.ElementsMatch(t, listA, listB, msgAndArgs...)
}

func IsType(t *testing.T, expectedType, object interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.IsType(t, expectedType, object, msgAndArgs...)
}

func IsTypef(t *testing.T, expectedType, object interface{}, format string, args ...interface{}) {
	t.Helper()
	require.IsTypef(t, expectedType, object, format, args...)
}

func Greater(t *testing.T, e1, e2 interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Greater(t, e1, e2, msgAndArgs...)
}

func GreaterOrEqual(t *testing.T, e1, e2 interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.GreaterOrEqual(t, e1, e2, msgAndArgs...)
}

func Less(t *testing.T, e1, e2 interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Less(t, e1, e2, msgAndArgs...)
}

func Lessf(t *testing.T, e1, e2 interface{}, format string, args ...interface{}) {
	t.Helper()
	require.Lessf(t, e1, e2, format, args...)
}

func Positive(t *testing.T, e interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Positive(t, e, msgAndArgs...)
}

func InDelta(t *testing.T, expected, actual interface{}, delta float64, msgAndArgs ...interface{}) {
	t.Helper()
	require.InDelta(t, expected, actual, delta, msgAndArgs...)
}

func InEpsilon(t *testing.T, expected, actual interface{}, epsilon float64, msgAndArgs ...interface{}) {
	t.Helper()
	require.InEpsilon(t, expected, actual, epsilon, msgAndArgs...)
}

func JSONEq(t *testing.T, expected, actual string, msgAndArgs ...interface{}) {
	t.Helper()
	require.JSONEq(t, expected, actual, msgAndArgs...)
}

func Same(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.Same(t, expected, actual, msgAndArgs...)
}

func NotSame(t *testing.T, expected, actual interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	require.NotSame(t, expected, actual, msgAndArgs...)
}

func Fail(t *testing.T, failureMessage string, msgAndArgs ...interface{}) {
	t.Helper()
	require.Fail(t, failureMessage, msgAndArgs...)
}

func FailNow(t *testing.T, failureMessage string, msgAndArgs ...interface{}) {
	t.Helper()
	require.FailNow(t, failureMessage, msgAndArgs...)
}

func DirExists(t *testing.T, path string, msgAndArgs ...interface{}) {
	t.Helper()
	require.DirExists(t, path, msgAndArgs...)
}

func NoDirExists(t *testing.T, path string, msgAndArgs ...interface{}) {
	t.Helper()
	require.NoDirExists(t, path, msgAndArgs...)
}

func Panics(t *testing.T, f func(), msgAndArgs ...interface{}) {
	t.Helper()
	require.Panics(t, f, msgAndArgs...)
}

func NotPanics(t *testing.T, f func(), msgAndArgs ...interface{}) {
	t.Helper()
	require.NotPanics(t, f, msgAndArgs...)
}

func NotPanicsf(t *testing.T, f func(), format string, args ...interface{}) {
	t.Helper()
	require.NotPanicsf(t, f, format, args...)
}

// CapturePanic invokes f and returns the recovered value formatted as an
// error, or nil if f did not panic.
func CapturePanic(f func()) (recovered error) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				recovered = err
			} else {
				recovered = fmt.Errorf("%v", r)
			}
		}
	}()
	f()
	return
}

// PanicsWithErrorPrefix asserts that f panics with an error whose message
// starts with prefix.
func PanicsWithErrorPrefix(t *testing.T, prefix string, f func(), msgAndArgs ...interface{}) {
	t.Helper()
	err := CapturePanic(f)
	if err == nil {
		require.Fail(t, "expected panic", msgAndArgs...)
		return
	}
	if !strings.HasPrefix(err.Error(), prefix) {
		require.Fail(t, fmt.Sprintf("expected panic prefix %q, got %q", prefix, err.Error()), msgAndArgs...)
	}
}

// Errno is the minimal interface implemented by host-specific errno types so
// that tests can assert on them without importing a platform package.
type Errno interface {
	error
	Is(target error) bool
}

// EqualErrno asserts that err wraps or equals expected via errors.Is.
func EqualErrno(t *testing.T, expected error, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if !errors.Is(err, expected) {
		require.Fail(t, fmt.Sprintf("expected errno %v, got %v", expected, err), msgAndArgs...)
	}
}
