//go:build !race

package bootloader

import "testing"

func skipRace(tb testing.TB) {
	tb.Helper()
}
