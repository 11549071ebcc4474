package lnurlpay

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ContentTypePlain      = "text/plain"
	ContentTypeLongDesc   = "text/long-desc"
	ContentTypeIdentifier = "text/identifier"
	ContentTypeEmail      = "text/email"
	ContentTypePNG        = "image/png;base64"
	ContentTypeJPEG       = "image/jpeg;base64"

	// MissingDescription is used when the metadata carries no text/plain
	// entry.
	MissingDescription = "Invoice description missing"
)

// MetadataField is a single [contentType, value] entry of a pay request's
// metadata. Content types are not guaranteed to be unique.
type MetadataField struct {
	ContentType string
	Value       string
}

// Metadata is the typed view of the fields higher layers consume.
type Metadata struct {
	Fields []MetadataField

	// Description is the text/plain entry, or MissingDescription.
	Description string

	// LongDescription is the optional text/long-desc entry.
	LongDescription string

	// Identifier is the payee's Lightning Address taken from a
	// text/identifier or text/email entry. It is only used for display.
	Identifier string

	// IdentifierType is the content type Identifier was taken from.
	IdentifierType string

	// Image is the base64 payload of the first png or jpeg entry.
	Image string
}

// ParseMetadata decodes the raw metadata string into its ordered fields.
func ParseMetadata(raw string) ([]MetadataField, error) {
	var entries [][]string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: not a list", ErrMalformedMetadata)
	}

	fields := make([]MetadataField, 0, len(entries))
	for i, e := range entries {
		if len(e) != 2 {
			return nil, fmt.Errorf("%w: entry %d has %d elements, "+
				"expected 2", ErrMalformedMetadata, i, len(e))
		}

		fields = append(fields, MetadataField{
			ContentType: e[0],
			Value:       e[1],
		})
	}

	return fields, nil
}

// FindMetadata returns the value of the first field whose content type
// matches contentType case-insensitively.
func FindMetadata(fields []MetadataField, contentType string) (string,
	bool) {

	for _, f := range fields {
		if strings.EqualFold(f.ContentType, contentType) {
			return f.Value, true
		}
	}

	return "", false
}

// DecodeMetadata parses raw and extracts the well known fields.
func DecodeMetadata(raw string) (*Metadata, error) {
	fields, err := ParseMetadata(raw)
	if err != nil {
		return nil, err
	}

	m := &Metadata{
		Fields:      fields,
		Description: MissingDescription,
	}
	if desc, ok := FindMetadata(fields, ContentTypePlain); ok {
		m.Description = desc
	}
	m.LongDescription, _ = FindMetadata(fields, ContentTypeLongDesc)

	// Either identifier type may come first, the first one wins.
	for _, f := range fields {
		if strings.EqualFold(f.ContentType, ContentTypeIdentifier) ||
			strings.EqualFold(f.ContentType, ContentTypeEmail) {

			m.Identifier = f.Value
			m.IdentifierType = f.ContentType
			break
		}
	}

	for _, f := range fields {
		if strings.EqualFold(f.ContentType, ContentTypePNG) ||
			strings.EqualFold(f.ContentType, ContentTypeJPEG) {

			m.Image = f.Value
			break
		}
	}

	return m, nil
}
