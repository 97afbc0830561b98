package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Query is one question asked about a PDF and the answer returned.
type Query struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PDFID      primitive.ObjectID `bson:"pdf_id" json:"pdf_id"`
	Question   string             `bson:"question" json:"question"`
	Answer     string             `bson:"answer" json:"answer"`
	Model      string             `bson:"model" json:"model"`
	Cached     bool               `bson:"cached" json:"cached"`
	TokensUsed int                `bson:"tokens_used" json:"tokens_used"`
	LatencyMS  int64              `bson:"latency_ms" json:"latency_ms"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

type QueryRequest struct {
	PDFID    string `json:"pdf_id" binding:"required"`
	Question string `json:"question" binding:"required,max=2000"`
}

type QueryHistoryResponse struct {
	PDFID   string  `json:"pdf_id"`
	Queries []Query `json:"queries"`
	Count   int     `json:"count"`
}
