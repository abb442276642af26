package viz

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderBoardProducesValidPNG(t *testing.T) {
	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	var buf bytes.Buffer
	require.NoError(t, RenderBoard(fen, &buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, boardPx, img.Bounds().Dx())
	require.Equal(t, boardPx, img.Bounds().Dy())
}

func TestRenderBoardRejectsWrongRankCount(t *testing.T) {
	err := RenderBoard("8/8/8 w - - 0 1", &bytes.Buffer{})
	require.Error(t, err)
}

func TestRenderBoardRejectsEmptyFEN(t *testing.T) {
	err := RenderBoard("", &bytes.Buffer{})
	require.Error(t, err)
}
