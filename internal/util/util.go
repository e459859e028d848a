// Package util holds the string helpers of the command line protocol.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs unquotes every argument in place and returns the slice.
func CleanArgs(args []string) []string {
	for i, v := range args {
		args[i] = FixEscapeQuotes(TrimQuotes(v))
	}
	return args
}

// SplitFields splits a command line on spaces and tabs. A double-quoted field
// may contain blanks; inside it "" stands for a literal quote. Quotes are kept,
// use CleanArgs to strip them.
func SplitFields(line string) []string {
	var (
		fields   []string
		b        strings.Builder
		inQuotes bool
		started  bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				b.WriteString(`""`)
				i++
				continue
			}
			inQuotes = !inQuotes
			b.WriteByte(c)
			started = true
		case (c == ' ' || c == '\t') && !inQuotes:
			if started {
				fields = append(fields, b.String())
				b.Reset()
				started = false
			}
		default:
			b.WriteByte(c)
			started = true
		}
	}
	if started {
		fields = append(fields, b.String())
	}
	return fields
}
