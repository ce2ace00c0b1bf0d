// Package diff renders readable differences for test failures.
package diff

import (
	"strings"
	"testing"

	"github.com/k0kubun/pp/v3"
	"github.com/kylelemons/godebug/diff"
	"github.com/walteh/semtokd/pkg/semtok"
)

// DiffExportedOnly pretty prints both values, ignoring unexported fields, and
// returns their line diff. It returns "" when they print the same.
func DiffExportedOnly[T any](want T, got T) string {
	printer := pp.New()
	printer.SetExportedOnly(true)
	printer.SetColoringEnabled(false)
	return render(printer.Sprint(got), printer.Sprint(want))
}

// Tokens diffs two token lists one token per line, which reads far better
// than a struct dump when a single position is off.
func Tokens(want, got []semtok.Token) string {
	return render(tokenLines(got), tokenLines(want))
}

func tokenLines(tokens []semtok.Token) string {
	lines := make([]string, len(tokens))
	for i, tok := range tokens {
		lines[i] = tok.String()
	}
	return strings.Join(lines, "\n")
}

func render(actual, expected string) string {
	if actual == expected {
		return ""
	}
	d := diff.Diff(actual, expected)
	str := "\n\n"
	str += "to convert ACTUAL ⏩️ EXPECTED:\n\n"
	str += "add:    ➕\n"
	str += "remove: ➖\n"
	str += "\n"
	str += strings.ReplaceAll(strings.ReplaceAll("\n"+d, "\n-", "\n➖"), "\n+", "\n➕")
	return str
}

func RequireKnownValueEqual[T any](t testing.TB, want T, got T) {
	t.Helper()
	if d := DiffExportedOnly(want, got); d != "" {
		t.Fatalf("unexpected value:%s", d)
	}
}

func RequireTokensEqual(t testing.TB, want, got []semtok.Token) {
	t.Helper()
	if d := Tokens(want, got); d != "" {
		t.Fatalf("unexpected tokens:%s", d)
	}
}
