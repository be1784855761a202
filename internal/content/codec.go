package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a serialized document encoding.
type Format string

// Supported document encodings.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ContentType returns the MIME type used when storing documents as blobs.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/yaml"
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".yaml"
}

// FormatForPath picks the encoding from a file name; unknown extensions are
// treated as YAML, which also accepts JSON input.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Decode reads a document in the given format.
func Decode(r io.Reader, format Format) (Document, error) {
	var doc Document
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return Document{}, fmt.Errorf("decode json content: %w", err)
		}
	case FormatYAML, "":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			if err == io.EOF {
				return Document{}, nil
			}
			return Document{}, fmt.Errorf("decode yaml content: %w", err)
		}
	default:
		return Document{}, fmt.Errorf("unsupported content format %q", format)
	}
	return doc, nil
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte, format Format) (Document, error) {
	return Decode(bytes.NewReader(data), format)
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc Document, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json content: %w", err)
		}
	case FormatYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml content: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml content: %w", err)
		}
	default:
		return fmt.Errorf("unsupported content format %q", format)
	}
	return nil
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(doc Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
