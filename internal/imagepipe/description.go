package imagepipe

import (
	"fmt"
	"path/filepath"
	"strings"
)

// stageDescription builds a deterministic, human-readable description
// from the filename and whatever EXIF fields were recovered. It never
// calls the vision describer; AI captioning happens later, in the
// embedding session.
func stageDescription(st *pipelineState) {
	name := strings.TrimSuffix(filepath.Base(st.filename), filepath.Ext(st.filename))
	parts := []string{fmt.Sprintf("Image %q", name)}

	if st.result.Camera != "" {
		parts = append(parts, "shot on "+st.result.Camera)
	}
	if st.result.Lens != "" {
		parts = append(parts, "with "+st.result.Lens)
	}
	if st.result.CameraSettings != "" {
		parts = append(parts, "("+st.result.CameraSettings+")")
	}
	if st.result.ThumbnailOnly {
		parts = append(parts, "[embedded thumbnail only]")
	}

	st.result.Description = strings.Join(parts, " ")
}
