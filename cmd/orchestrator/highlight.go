package main

import (
	"os"

	"github.com/alecthomas/chroma/v2/quick"
)

// printJSON syntax-highlights data as JSON when writing to a terminal;
// written to a file or pipe it falls back to plain output, since ANSI color
// codes in a redirected file are just noise.
func printJSON(data []byte) {
	if !isTerminal() {
		os.Stdout.Write(data)
		os.Stdout.WriteString("\n")
		return
	}
	if err := quick.Highlight(os.Stdout, string(data), "json", "terminal256", "monokai"); err != nil {
		os.Stdout.Write(data)
	}
	os.Stdout.WriteString("\n")
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
