package viz

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	squareSize = 48
	boardPx    = squareSize * 8
	fontSize   = 28
)

var (
	light = color.RGBA{0xee, 0xee, 0xd2, 0xff}
	dark  = color.RGBA{0x76, 0x96, 0x56, 0xff}
	white = color.RGBA{0xf5, 0xf5, 0xf5, 0xff}
	black = color.RGBA{0x20, 0x20, 0x20, 0xff}
)

// RenderBoard draws an 8x8 board thumbnail of fen's piece placement field
// to a PNG, a debug helper for reviewing positions by eye; no command in
// this repository calls it. It
// works directly off FEN text rather than game/chess's notnil/chess-backed
// Position so viz never needs to import the move generator itself.
func RenderBoard(fen string, w io.Writer) error {
	placement := strings.Fields(fen)
	if len(placement) == 0 {
		return errors.New("viz: empty fen")
	}
	ranks := strings.Split(placement[0], "/")
	if len(ranks) != 8 {
		return errors.Errorf("viz: fen has %d ranks, want 8", len(ranks))
	}

	img := image.NewRGBA(image.Rect(0, 0, boardPx, boardPx))
	for r := 0; r < 8; r++ {
		for c := 0; c < 8; c++ {
			col := light
			if (r+c)%2 == 1 {
				col = dark
			}
			square := image.Rect(c*squareSize, r*squareSize, (c+1)*squareSize, (r+1)*squareSize)
			draw.Draw(img, square, image.NewUniform(col), image.Point{}, draw.Src)
		}
	}

	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return errors.WithStack(err)
	}
	ctx := freetype.NewContext()
	ctx.SetDPI(72)
	ctx.SetFont(f)
	ctx.SetFontSize(fontSize)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)
	ctx.SetHinting(font.HintingFull)

	for r, rank := range ranks {
		file := 0
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				n, _ := strconv.Atoi(string(ch))
				file += n
				continue
			}
			glyphColor := black
			if ch >= 'A' && ch <= 'Z' {
				glyphColor = white
			}
			ctx.SetSrc(image.NewUniform(glyphColor))
			x := file*squareSize + squareSize/3
			y := r*squareSize + squareSize*2/3
			pt := freetype.Pt(x, y)
			if _, err := ctx.DrawString(string(ch), pt); err != nil {
				return errors.WithStack(err)
			}
			file++
		}
	}

	return png.Encode(w, img)
}
