package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joeycumines/playfeel/internal/fsutil"
)

// SetOptionInFile updates or adds key in the given section of the config
// file ("" is the global section), preserving comments and formatting.
//
// An existing line for key in that section is replaced in place. Otherwise
// the line is inserted at the end of the section; global keys go before the
// first section header, and a missing section is appended to the file.
func SetOptionInFile(path, section, key, value string) error {
	if key == "" || strings.ContainsAny(key, " \t") {
		return fmt.Errorf("invalid option name %q", key)
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	var lines []string
	if len(data) > 0 {
		lines = strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	}

	newLine := strings.TrimSpace(key + " " + value)
	current := ""
	inSection := section == ""
	insertAt := -1
	if inSection {
		insertAt = len(lines)
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			if inSection && insertAt == len(lines) {
				insertAt = lastOptionEnd(lines, i)
			}
			current = strings.TrimSpace(strings.Trim(trimmed, "[]"))
			inSection = current == section
			if inSection {
				insertAt = len(lines)
			}
			continue
		}
		if !inSection || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if name, _, _ := strings.Cut(trimmed, " "); name == key {
			lines[i] = newLine
			return writeLines(path, lines)
		}
	}

	switch {
	case insertAt < 0:
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, "["+section+"]", newLine)
	case insertAt >= len(lines):
		lines = append(lines, newLine)
	default:
		lines = append(lines[:insertAt+1], lines[insertAt:]...)
		lines[insertAt] = newLine
	}
	return writeLines(path, lines)
}

// lastOptionEnd returns the index just past the last non-blank line before
// the header at index header.
func lastOptionEnd(lines []string, header int) int {
	i := header
	for i > 0 && strings.TrimSpace(lines[i-1]) == "" {
		i--
	}
	return i
}

func writeLines(path string, lines []string) error {
	return fsutil.WriteFileAtomic(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
