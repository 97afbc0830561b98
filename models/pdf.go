package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PDF is an uploaded document and the text extracted from it.
type PDF struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename     string             `bson:"filename" json:"filename"`
	FileHash     string             `bson:"file_hash" json:"file_hash"`
	DedupKey     string             `bson:"dedup_key,omitempty" json:"-"` // file_hash until the record fails
	Size         int64              `bson:"size" json:"size"`
	Storage      StorageRef         `bson:"storage" json:"storage"`
	Status       string             `bson:"status" json:"status"` // pending, processing, completed, failed
	Pages        int                `bson:"pages" json:"pages"`
	CharCount    int                `bson:"char_count" json:"char_count"`
	Content      []byte             `bson:"content,omitempty" json:"-"` // Page text, compressed
	Compression  string             `bson:"compression,omitempty" json:"-"`
	ErrorMessage string             `bson:"error_message,omitempty" json:"error_message,omitempty"`
	UploadedAt   time.Time          `bson:"uploaded_at" json:"uploaded_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	ProcessedAt  *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
}

// StorageRef points at the original file in media storage.
type StorageRef struct {
	Provider string `bson:"provider" json:"provider"`
	PublicID string `bson:"public_id" json:"public_id"`
	URL      string `bson:"url" json:"url"`
}

// UploadResponse represents the response after successful upload
type UploadResponse struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Pages     int    `json:"pages"`
	URL       string `json:"url"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message"`
}

// PDFListResponse is one page of uploaded documents.
type PDFListResponse struct {
	PDFs  []PDF `json:"pdfs"`
	Total int64 `json:"total"`
	Limit int64 `json:"limit"`
	Skip  int64 `json:"skip"`
}

// PDFProcessingStatus represents processing status constants
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)
