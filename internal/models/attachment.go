package models

import (
	"path/filepath"
	"strings"
)

type FileKind string

const (
	FileKindText        FileKind = "text"
	FileKindDocument    FileKind = "document"
	FileKindSpreadsheet FileKind = "spreadsheet"
	FileKindImage       FileKind = "image"
	FileKindPDF         FileKind = "pdf"
	FileKindUnknown     FileKind = "unknown"
)

// AttachedFile mirrors a backend file descriptor for an uploaded attachment.
// The ID is assigned by the backend on a successful upload.
type AttachedFile struct {
	ID              string   `json:"id"`
	OriginalName    string   `json:"originalName"`
	MimeType        string   `json:"mimeType"`
	SizeBytes       int64    `json:"sizeBytes"`
	Kind            FileKind `json:"kind"`
	HasFullContent  bool     `json:"hasFullContent"`
	ProcessingError string   `json:"processingError,omitempty"`
}

// KindForName classifies a file by its extension. Content extraction happens
// backend-side; this only drives client display.
func KindForName(name string) FileKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md", ".markdown", ".log", ".json", ".yaml", ".yml", ".xml":
		return FileKindText
	case ".doc", ".docx", ".odt", ".rtf":
		return FileKindDocument
	case ".csv", ".tsv", ".xls", ".xlsx", ".ods":
		return FileKindSpreadsheet
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".svg":
		return FileKindImage
	case ".pdf":
		return FileKindPDF
	}
	return FileKindUnknown
}
