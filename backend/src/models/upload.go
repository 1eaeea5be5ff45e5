package models

// ParsedUpload is a decoded upload before validation.
type ParsedUpload struct {
	Format   string
	Header   []string
	Records  []RawRecord
	Warnings []string
}
