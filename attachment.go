package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aihelper/aihelper/internal/proto"
)

// maxAttachmentSize is the largest file accepted as an attachment (20MB).
const maxAttachmentSize = 20 * 1024 * 1024

var attachmentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
}

// readAttachment reads the file at path, detecting its MIME type from the
// extension and then from its content.
func readAttachment(path string) (*proto.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not read attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("attachment is a directory: %s", path)
	}
	if info.Size() > maxAttachmentSize {
		return nil, fmt.Errorf("attachment too large: %s (%.2f MB > 20 MB)",
			path, float64(info.Size())/(1024*1024))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read attachment: %w", err)
	}
	return &proto.Attachment{
		Name:     filepath.Base(path),
		MIMEType: detectMIMEType(path, data),
		Data:     data,
	}, nil
}

func detectMIMEType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := attachmentTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t
	}
	t, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return t
}
