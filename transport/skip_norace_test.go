//go:build !race

package transport

import "testing"

func skipRace(tb testing.TB) {
	tb.Helper()
}
