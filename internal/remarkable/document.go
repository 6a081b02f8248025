package remarkable

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
)

// documentContent is the .content metadata bundled into a document
// archive. The defaults mirror what a device writes for an imported
// PDF.
type documentContent struct {
	ExtraMetadata  map[string]string `json:"extraMetadata"`
	FileType       string            `json:"fileType"`
	LastOpenedPage int               `json:"lastOpenedPage"`
	LineHeight     int               `json:"lineHeight"`
	Margins        int               `json:"margins"`
	PageCount      int               `json:"pageCount"`
	TextScale      int               `json:"textScale"`
	Transform      map[string]string `json:"transform"`
}

// buildDocumentArchive assembles the zip payload for a new PDF
// document: <id>.content, <id>.pagedata and <id>.pdf.
func buildDocumentArchive(id string, pdf []byte) ([]byte, error) {
	content := documentContent{
		ExtraMetadata: map[string]string{},
		FileType:      "pdf",
		LineHeight:    -1,
		Margins:       180,
		TextScale:     1,
		Transform:     map[string]string{},
	}

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshaling content metadata: %w", err)
	}

	return buildArchive([]archiveEntry{
		{name: id + ".content", data: contentJSON},
		{name: id + ".pagedata", data: nil},
		{name: id + ".pdf", data: pdf},
	})
}

// buildFolderArchive assembles the zip payload for a new collection,
// which carries only an empty .content entry.
func buildFolderArchive(id string) ([]byte, error) {
	return buildArchive([]archiveEntry{
		{name: id + ".content", data: []byte("{}")},
	})
}

// archiveEntry is one file inside an item archive.
type archiveEntry struct {
	name string
	data []byte
}

func buildArchive(entries []archiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, entry := range entries {
		w, err := zw.Create(entry.name)
		if err != nil {
			return nil, fmt.Errorf("creating %s in archive: %w", entry.name, err)
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, fmt.Errorf("writing %s to archive: %w", entry.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}

	return buf.Bytes(), nil
}
