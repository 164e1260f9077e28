package normalisers

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docsync/internal/core/domain"
)

var (
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// DecodeText validates raw as UTF-8, strips a byte order mark and converts
// CRLF and CR line endings to LF. Invalid UTF-8 returns domain.ErrParse.
func DecodeText(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", domain.ErrParse)
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}

// CollapseBlankLines trims trailing spaces on each line, squeezes runs of
// blank lines to one and trims the result.
func CollapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = multiNewlines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}
