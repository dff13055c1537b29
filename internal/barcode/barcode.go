// Package barcode renders Code 128 barcode images for assigned document
// IDs, with a human-readable label under the bars. Barcode failures never
// abort site generation: callers fall back to a text placeholder.
package barcode

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	huberr "git.home.luguber.info/inful/intrahub/internal/errors"
	"git.home.luguber.info/inful/intrahub/internal/logfields"
)

const (
	barWidth    = 220
	barHeight   = 60
	labelHeight = 18
	margin      = 8
)

// PNG encodes content as a Code 128 barcode with the content printed
// beneath the bars.
func PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, huberr.ValidationError("barcode: empty content")
	}
	code, err := code128.Encode(content)
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategorySite, huberr.SeverityWarning, "failed to encode barcode").
			WithContext("content", content)
	}
	scaled, err := barcode.Scale(code, barWidth, barHeight)
	if err != nil {
		return nil, huberr.Wrap(err, huberr.CategorySite, huberr.SeverityWarning, "failed to scale barcode").
			WithContext("content", content)
	}

	img := image.NewRGBA(image.Rect(0, 0, barWidth+2*margin, barHeight+labelHeight+2*margin))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(margin, margin, margin+barWidth, margin+barHeight), scaled, image.Point{}, draw.Src)
	drawLabel(img, content, margin+barHeight+4)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, huberr.Wrap(err, huberr.CategorySite, huberr.SeverityWarning, "failed to encode barcode png")
	}
	return buf.Bytes(), nil
}

// DataURI returns the barcode as an inline image data URI. When bar
// encoding fails the image degrades to a bordered text placeholder; an
// empty string only results when even that cannot be produced.
func DataURI(content string) string {
	data, err := pngOrPlaceholder(content)
	if err != nil {
		slog.Warn("Barcode generation failed", logfields.DocID(content), logfields.Error(err))
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// WriteFile writes the barcode PNG for content to dir/<content>.png and
// returns the file name.
func WriteFile(dir, content string) (string, error) {
	data, err := pngOrPlaceholder(content)
	if err != nil {
		return "", err
	}
	name := content + ".png"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		return "", huberr.Wrap(err, huberr.CategoryFileSystem, huberr.SeverityWarning, "failed to write barcode file").
			WithContext("path", name)
	}
	return name, nil
}

func pngOrPlaceholder(content string) ([]byte, error) {
	data, err := PNG(content)
	if err == nil {
		return data, nil
	}
	if content == "" {
		return nil, err
	}
	slog.Warn("Barcode encoding failed, using text placeholder",
		logfields.DocID(content), logfields.Error(err))
	return placeholderPNG(content)
}

// placeholderPNG draws the content as bordered text in barcode
// dimensions, for inputs Code 128 cannot encode.
func placeholderPNG(content string) ([]byte, error) {
	w, h := barWidth+2*margin, barHeight+labelHeight+2*margin
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	border := image.NewUniform(color.Black)
	draw.Draw(img, image.Rect(0, 0, w, 2), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, h-2, w, h), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, 2, h), border, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(w-2, 0, w, h), border, image.Point{}, draw.Src)

	drawLabel(img, content, h/2-basicfont.Face7x13.Metrics().Ascent.Ceil())

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, huberr.Wrap(err, huberr.CategorySite, huberr.SeverityWarning, "failed to encode placeholder png")
	}
	return buf.Bytes(), nil
}

// drawLabel centers text horizontally at the given top offset.
func drawLabel(img *image.RGBA, text string, top int) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	x := (img.Bounds().Dx() - width) / 2
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(x, top+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
