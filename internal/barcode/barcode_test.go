package barcode

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPNGDimensions(t *testing.T) {
	data, err := PNG("DOC-0001")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, barWidth+2*margin, img.Bounds().Dx())
	assert.Equal(t, barHeight+labelHeight+2*margin, img.Bounds().Dy())
}

func TestPNGEmptyContent(t *testing.T) {
	_, err := PNG("")
	assert.Error(t, err)
}

func TestDataURI(t *testing.T) {
	uri := DataURI("DOC-0042")
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	assert.Empty(t, DataURI(""))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	name, err := WriteFile(dir, "DOC-0007")
	require.NoError(t, err)
	assert.Equal(t, "DOC-0007.png", name)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestWriteFileEmptyContent(t *testing.T) {
	_, err := WriteFile(t.TempDir(), "")
	assert.Error(t, err)
}

func TestPlaceholderPNGDecodes(t *testing.T) {
	data, err := placeholderPNG("DOC-0001")
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, barWidth+2*margin, img.Bounds().Dx())
}
