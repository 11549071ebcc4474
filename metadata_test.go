package lnurlpay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		fields    []MetadataField
		malformed bool
	}{
		{
			name: "single field",
			raw:  `[["text/plain","Coffee"]]`,
			fields: []MetadataField{
				{ContentType: "text/plain", Value: "Coffee"},
			},
		},
		{
			name: "order and duplicates kept",
			raw:  `[["text/plain","a"],["image/png;base64","x"],["text/plain","b"]]`,
			fields: []MetadataField{
				{ContentType: "text/plain", Value: "a"},
				{ContentType: "image/png;base64", Value: "x"},
				{ContentType: "text/plain", Value: "b"},
			},
		},
		{
			name:   "empty list",
			raw:    `[]`,
			fields: []MetadataField{},
		},
		{
			name:      "not json",
			raw:       `text/plain`,
			malformed: true,
		},
		{
			name:      "null",
			raw:       `null`,
			malformed: true,
		},
		{
			name:      "object",
			raw:       `{"text/plain":"Coffee"}`,
			malformed: true,
		},
		{
			name:      "three elements",
			raw:       `[["text/plain","Coffee","extra"]]`,
			malformed: true,
		},
		{
			name:      "one element",
			raw:       `[["text/plain"]]`,
			malformed: true,
		},
		{
			name:      "non string value",
			raw:       `[["text/plain",5]]`,
			malformed: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fields, err := ParseMetadata(test.raw)
			if test.malformed {
				require.ErrorIs(t, err, ErrMalformedMetadata)
				return
			}

			require.NoError(t, err)
			require.Equal(t, test.fields, fields)
		})
	}
}

func TestFindMetadata(t *testing.T) {
	fields := []MetadataField{
		{ContentType: "Text/Plain", Value: "first"},
		{ContentType: "text/plain", Value: "second"},
	}

	upper, ok := FindMetadata(fields, "TEXT/PLAIN")
	require.True(t, ok)
	lower, ok := FindMetadata(fields, "text/plain")
	require.True(t, ok)

	require.Equal(t, "first", upper)
	require.Equal(t, upper, lower)

	_, ok = FindMetadata(fields, "text/identifier")
	require.False(t, ok)
}

func TestDecodeMetadata(t *testing.T) {
	m, err := DecodeMetadata(metadataJSON(
		[2]string{"image/jpeg;base64", "aW1n"},
		[2]string{"TEXT/EMAIL", "bob@example.com"},
		[2]string{"text/identifier", "alice@example.com"},
		[2]string{"text/plain", "Coffee"},
		[2]string{"text/long-desc", "A cup of coffee"},
	))
	require.NoError(t, err)

	require.Equal(t, "Coffee", m.Description)
	require.Equal(t, "A cup of coffee", m.LongDescription)
	require.Equal(t, "bob@example.com", m.Identifier)
	require.Equal(t, "TEXT/EMAIL", m.IdentifierType)
	require.Equal(t, "aW1n", m.Image)
	require.Len(t, m.Fields, 5)

	// A missing description is substituted, not an error.
	m, err = DecodeMetadata(`[["text/identifier","alice@example.com"]]`)
	require.NoError(t, err)
	require.Equal(t, MissingDescription, m.Description)
	require.Equal(t, "alice@example.com", m.Identifier)

	_, err = DecodeMetadata(`[[]]`)
	require.ErrorIs(t, err, ErrMalformedMetadata)
}
