package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/fogleman/gg"
)

// Canvas size of the generated image. Fixed: the product page and the email
// template both assume these dimensions.
const (
	canvasWidth  = 1200
	canvasHeight = 630
)

// Placeholders used when checkout metadata was absent.
const (
	placeholderName   = "なまえ"
	placeholderRomaji = "your name"
)

// Renderer produces the personalized name image in-process. Two font faces:
// the primary face must cover the localized script, the secondary face is
// Latin-only for the romanized line.
type Renderer struct {
	primaryFontPath   string
	secondaryFontPath string
}

// NewRenderer returns a Renderer reading font faces from the given paths.
// Fonts are loaded per render; a missing or corrupt file surfaces as an
// error on Render, never as a panic.
func NewRenderer(primaryFontPath, secondaryFontPath string) *Renderer {
	return &Renderer{
		primaryFontPath:   primaryFontPath,
		secondaryFontPath: secondaryFontPath,
	}
}

// Render draws the localized and romanized names onto the canvas and returns
// the encoded PNG. Empty names fall back to placeholders.
func (r *Renderer) Render(ctx context.Context, sessionID, name, romaji string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		name = placeholderName
	}
	if romaji == "" {
		romaji = placeholderRomaji
	}

	dc := gg.NewContext(canvasWidth, canvasHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	if err := dc.LoadFontFace(r.primaryFontPath, 120); err != nil {
		return nil, fmt.Errorf("load primary font face: %w", err)
	}
	dc.SetRGB255(33, 33, 33)
	dc.DrawStringAnchored(name, canvasWidth/2, canvasHeight*0.40, 0.5, 0.5)

	if err := dc.LoadFontFace(r.secondaryFontPath, 52); err != nil {
		return nil, fmt.Errorf("load secondary font face: %w", err)
	}
	dc.SetRGB255(96, 96, 96)
	dc.DrawStringAnchored(romaji, canvasWidth/2, canvasHeight*0.62, 0.5, 0.5)

	// order reference in small print, bottom-right
	if err := dc.LoadFontFace(r.secondaryFontPath, 16); err != nil {
		return nil, fmt.Errorf("load secondary font face: %w", err)
	}
	dc.SetRGB255(180, 180, 180)
	dc.DrawStringAnchored(sessionID, canvasWidth-24, canvasHeight-20, 1, 1)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
