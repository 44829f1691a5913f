package domain

// Document is the raw text of one source file. It is not mutated after loading.
type Document struct {
	Source   string
	Text     string
	Metadata map[string]string
}

// Document metadata keys
const (
	MetaFileName         = "file_name"
	MetaFilePath         = "file_path"
	MetaFileSize         = "file_size"
	MetaLastModifiedDate = "last_modified_date"
)

// Chunk is a contiguous span of a Document's text.
type Chunk struct {
	Source   string            `json:"source"`
	Index    int               `json:"index"`
	Offset   int               `json:"offset"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
