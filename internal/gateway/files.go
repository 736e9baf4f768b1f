package gateway

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize caps a single attachment or uploaded document.
	MaxFileSize = 10 << 20
	// MaxFiles caps the number of attachments on one message.
	MaxFiles = 5
)

var attachmentExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".json":     true,
	".pdf":      true,
	".png":      true,
	".jpg":      true,
	".jpeg":     true,
	".webp":     true,
}

var documentExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// File is an attachment handed to SendMessage or UploadDocument.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ReadFile loads a file from disk and fills in its content type.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	name := filepath.Base(path)
	return File{Name: name, ContentType: contentType(name, data), Data: data}, nil
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// ValidateFiles checks message attachments before any request is made.
func ValidateFiles(files []File) error {
	if len(files) > MaxFiles {
		return validationError("send", fmt.Sprintf("at most %d files per message", MaxFiles))
	}
	for _, f := range files {
		if err := checkFile("send", f, attachmentExtensions); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDocument checks a document destined for retrieval ingestion.
func ValidateDocument(f File) error {
	return checkFile("upload-document", f, documentExtensions)
}

func checkFile(op string, f File, allowed map[string]bool) error {
	if strings.TrimSpace(f.Name) == "" {
		return validationError(op, "file name is required")
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !allowed[ext] {
		return validationError(op, fmt.Sprintf("file type %q is not supported", ext))
	}
	if len(f.Data) == 0 {
		return validationError(op, fmt.Sprintf("file %s is empty", f.Name))
	}
	if len(f.Data) > MaxFileSize {
		return validationError(op, fmt.Sprintf("file %s exceeds %d MB", f.Name, MaxFileSize>>20))
	}
	return nil
}
