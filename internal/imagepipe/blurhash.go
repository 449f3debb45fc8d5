package imagepipe

import (
	"image"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"
)

const blurHashComponentsX, blurHashComponentsY = 4, 3
const blurHashMaxEdge = 32

// stageBlurHash downscales the decoded image to at most 32x32 and
// encodes a BlurHash placeholder string. Failure to encode a BlurHash
// is not fatal to ingestion; the field is simply left empty.
func stageBlurHash(st *pipelineState) {
	thumb := thumbnail(st.img, blurHashMaxEdge)
	hash, err := blurhash.Encode(blurHashComponentsX, blurHashComponentsY, thumb)
	if err != nil {
		return
	}
	st.result.BlurHash = hash
}

// thumbnail scales img down so its longest edge is at most maxEdge,
// preserving aspect ratio. Images already within bounds are returned
// unchanged.
func thumbnail(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(w)
	if h > w {
		scale = float64(maxEdge) / float64(h)
	}
	dstW := maxInt(1, int(float64(w)*scale))
	dstH := maxInt(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
