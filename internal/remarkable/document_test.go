package remarkable

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"testing"
)

// readArchive unpacks a zip payload into a name -> content map.
func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading %s: %v", f.Name, err)
		}
		files[f.Name] = content
	}
	return files
}

func TestBuildDocumentArchive(t *testing.T) {
	const id = "11111111-2222-3333-4444-555555555555"
	pdf := []byte("%PDF-1.4 test body")

	data, err := buildDocumentArchive(id, pdf)
	if err != nil {
		t.Fatalf("buildDocumentArchive() error = %v", err)
	}

	files := readArchive(t, data)
	if len(files) != 3 {
		t.Fatalf("archive has %d entries, expected 3", len(files))
	}

	if got := files[id+".pdf"]; !bytes.Equal(got, pdf) {
		t.Errorf("pdf entry = %q, expected %q", got, pdf)
	}
	if got, ok := files[id+".pagedata"]; !ok || len(got) != 0 {
		t.Errorf("pagedata entry = %q, expected present and empty", got)
	}

	var content documentContent
	if err := json.Unmarshal(files[id+".content"], &content); err != nil {
		t.Fatalf("unmarshaling content entry: %v", err)
	}
	if content.FileType != "pdf" {
		t.Errorf("content.FileType = %q, expected %q", content.FileType, "pdf")
	}
	if content.LineHeight != -1 || content.Margins != 180 || content.TextScale != 1 {
		t.Errorf("content defaults = %d/%d/%d, expected -1/180/1",
			content.LineHeight, content.Margins, content.TextScale)
	}
}

func TestBuildFolderArchive(t *testing.T) {
	const id = "99999999-8888-7777-6666-555555555555"

	data, err := buildFolderArchive(id)
	if err != nil {
		t.Fatalf("buildFolderArchive() error = %v", err)
	}

	files := readArchive(t, data)
	if len(files) != 1 {
		t.Fatalf("archive has %d entries, expected 1", len(files))
	}
	if got := string(files[id+".content"]); got != "{}" {
		t.Errorf("content entry = %q, expected %q", got, "{}")
	}
}
