package sheets

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidURL is returned when no spreadsheet id can be found in a URL.
var ErrInvalidURL = errors.New("sheets: invalid spreadsheet url")

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// ExtractSpreadsheetID pulls the spreadsheet id out of a Google Sheets URL.
func ExtractSpreadsheetID(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", ErrInvalidURL
	}
	match := spreadsheetIDPattern.FindStringSubmatch(trimmed)
	if len(match) < 2 || match[1] == "" {
		return "", ErrInvalidURL
	}
	return match[1], nil
}
