package imagepipe

import (
	"bytes"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
)

// stageExtractEXIF pulls camera, lens, GPS, and exposure fields out of
// the original source bytes when present. Absence of EXIF data (PNG,
// TGA, most thumbnail fallbacks) is not an error.
func stageExtractEXIF(st *pipelineState) error {
	if len(st.sourceExif) == 0 {
		return nil
	}
	x, err := exif.Decode(bytes.NewReader(st.sourceExif))
	if err != nil {
		return nil
	}

	make_ := tagString(x, exif.Make)
	model := tagString(x, exif.Model)
	st.result.Camera = joinNonEmpty(make_, model)
	st.result.Lens = tagString(x, exif.LensModel)

	if lat, long, err := x.LatLong(); err == nil {
		st.result.Location = fmt.Sprintf("%.6f,%.6f", lat, long)
	}

	st.result.CameraSettings = buildCameraSettings(
		labeledTag{"ISO", tagString(x, exif.ISOSpeedRatings)},
		labeledTag{"f", tagString(x, exif.FNumber)},
		labeledTag{"exp", tagString(x, exif.ExposureTime)},
		labeledTag{"focal", tagString(x, exif.FocalLength)},
	)

	return nil
}

// tagString reads a named EXIF field, returning "" when absent.
func tagString(x *exif.Exif, name exif.FieldName) string {
	t, err := x.Get(name)
	if err != nil || t == nil {
		return ""
	}
	return trimQuotes(t.String())
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}

type labeledTag struct {
	label string
	value string
}

func buildCameraSettings(fields ...labeledTag) string {
	out := ""
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += f.label + "=" + f.value
	}
	return out
}
