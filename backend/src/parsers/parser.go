// backend/src/parsers/parser.go
package parsers

import (
	"io"

	"github.com/username/esopfolio/backend/src/models"
)

type Parser interface {
	Parse(file io.Reader) (*models.ParsedUpload, error)
}
