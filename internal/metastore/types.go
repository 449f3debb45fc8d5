// Package metastore implements the two-tier (Redis + on-disk) per-folder
// metadata store: Redis is the fast path when configured, the on-disk
// JSON mirror is the tier of record when Redis is absent or unreachable.
package metastore

// Document is the on-disk unit produced by ingestion: a JSON object
// describing one file's content and provenance.
type Document struct {
	ID                 string `json:"id"`
	URL                string `json:"url"`
	Title              string `json:"title"`
	DocAuthor          string `json:"docAuthor"`
	Description        string `json:"description"`
	DocSource          string `json:"docSource"`
	ChunkSource        string `json:"chunkSource"`
	Published          string `json:"published"`
	WordCount          int    `json:"wordCount"`
	TokenCountEstimate int    `json:"token_count_estimate,omitempty"`
	PageContent        string `json:"pageContent,omitempty"`
	Extension          string `json:"extension"`
	FileType           string `json:"fileType"` // "text" or "image"
	EmbeddingMode      string `json:"embeddingMode,omitempty"`
	ImageBase64        string `json:"imageBase64,omitempty"`
	BlurHash           string `json:"blurHash,omitempty"`
	Camera             string `json:"camera,omitempty"`
	Lens               string `json:"lens,omitempty"`
	Location           string `json:"location,omitempty"`
	CameraSettings     string `json:"cameraSettings,omitempty"`
	MtimeMs            int64  `json:"mtimeMs"`
	Size               int64  `json:"size"`
}

// RequiredFields lists the Document fields that must be present for a
// file to be eligible for the folder picker.
var RequiredFields = []string{
	"name", "type", "url", "title", "docAuthor", "description",
	"docSource", "chunkSource", "published", "wordCount",
}

// FileMetadata is a Document with the bulky payload fields stripped,
// plus scan-time attachments.
type FileMetadata struct {
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	URL              string   `json:"url"`
	Title            string   `json:"title"`
	DocAuthor        string   `json:"docAuthor"`
	Description      string   `json:"description"`
	DocSource        string   `json:"docSource"`
	ChunkSource      string   `json:"chunkSource"`
	Published        string   `json:"published"`
	WordCount        int      `json:"wordCount"`
	Extension        string   `json:"extension,omitempty"`
	FileType         string   `json:"fileType,omitempty"`
	EmbeddingMode    string   `json:"embeddingMode,omitempty"`
	BlurHash         string   `json:"blurHash,omitempty"`
	Camera           string   `json:"camera,omitempty"`
	Lens             string   `json:"lens,omitempty"`
	Location         string   `json:"location,omitempty"`
	CameraSettings   string   `json:"cameraSettings,omitempty"`
	MtimeMs          int64    `json:"mtimeMs"`
	Size             int64    `json:"size"`
	Cached           bool     `json:"cached"`
	CanWatch         bool     `json:"canWatch"`
	PinnedWorkspaces []string `json:"pinnedWorkspaces,omitempty"`
	Watched          bool     `json:"watched"`
}

// StripDocument converts a Document to its FileMetadata projection,
// dropping pageContent and imageBase64.
func StripDocument(d Document) FileMetadata {
	return FileMetadata{
		Name:           documentName(d),
		Type:           "file",
		URL:            d.URL,
		Title:          d.Title,
		DocAuthor:      d.DocAuthor,
		Description:    d.Description,
		DocSource:      d.DocSource,
		ChunkSource:    d.ChunkSource,
		Published:      d.Published,
		WordCount:      d.WordCount,
		Extension:      d.Extension,
		FileType:       d.FileType,
		EmbeddingMode:  d.EmbeddingMode,
		BlurHash:       d.BlurHash,
		Camera:         d.Camera,
		Lens:           d.Lens,
		Location:       d.Location,
		CameraSettings: d.CameraSettings,
		MtimeMs:        d.MtimeMs,
		Size:           d.Size,
	}
}

func documentName(d Document) string {
	if d.Title != "" {
		return d.Title
	}
	return d.ID
}

// FolderIndex is the per-folder metadata index: the authoritative set of
// files known to exist in a folder as of the last refresh.
type FolderIndex struct {
	Name  string         `json:"name"`
	Type  string         `json:"type"` // always "folder"
	Items []FileMetadata `json:"items"`
}

// NewFolderIndex creates an empty index for the given folder name.
func NewFolderIndex(name string) *FolderIndex {
	return &FolderIndex{Name: name, Type: "folder", Items: []FileMetadata{}}
}

// indexOf returns the position of the item named name, or -1.
func (f *FolderIndex) indexOf(name string) int {
	for i := range f.Items {
		if f.Items[i].Name == name {
			return i
		}
	}
	return -1
}

// Upsert replaces the item matching item.Name or appends it, preserving
// idempotence on name.
func (f *FolderIndex) Upsert(item FileMetadata) {
	if i := f.indexOf(item.Name); i >= 0 {
		f.Items[i] = item
		return
	}
	f.Items = append(f.Items, item)
}

// Remove deletes the item named name, if present.
func (f *FolderIndex) Remove(name string) {
	if i := f.indexOf(name); i >= 0 {
		f.Items = append(f.Items[:i], f.Items[i+1:]...)
	}
}
