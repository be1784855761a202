// Package atlasdata embeds the default atlas content document.
package atlasdata

import (
	"context"
	_ "embed"
	"fmt"

	"fungiatlas/internal/content"
)

//go:embed atlas.yaml
var atlasYAML []byte

// Raw returns a copy of the embedded YAML document.
func Raw() []byte {
	out := make([]byte, len(atlasYAML))
	copy(out, atlasYAML)
	return out
}

// Default decodes the embedded atlas.
func Default() (content.Document, error) {
	doc, err := content.DecodeBytes(atlasYAML, content.FormatYAML)
	if err != nil {
		return content.Document{}, fmt.Errorf("embedded atlas: %w", err)
	}
	return doc, nil
}

// Source serves the embedded atlas as a content source.
type Source struct{}

// Name implements content.Source.
func (Source) Name() string { return "embedded" }

// Fetch implements content.Source.
func (Source) Fetch(ctx context.Context) (content.Document, error) {
	if err := ctx.Err(); err != nil {
		return content.Document{}, err
	}
	return Default()
}
