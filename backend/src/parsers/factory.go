// backend/src/parsers/factory.go
package parsers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/username/esopfolio/backend/src/parsers/csvgrants"
	"github.com/username/esopfolio/backend/src/parsers/jsongrants"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var ErrUnknownFormat = errors.New("unknown upload format")

func GetParser(format string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV:
		return csvgrants.NewParser(), nil
	case FormatJSON:
		return jsongrants.NewParser(), nil
	default:
		return nil, fmt.Errorf("%w: no parser available for format: %s", ErrUnknownFormat, format)
	}
}

// DetectFormat picks the upload format from an explicit hint, the file
// extension or the detected content type, in that order.
func DetectFormat(hint, filename, contentType string) (string, error) {
	if hint != "" {
		return strings.ToLower(strings.TrimSpace(hint)), nil
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	}
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		return FormatJSON, nil
	case strings.HasPrefix(contentType, "text/csv"), strings.HasPrefix(contentType, "text/plain"):
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: cannot infer format of '%s'", ErrUnknownFormat, filename)
}
