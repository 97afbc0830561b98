package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-query-system/internal/ai"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/logger"
	"pdf-query-system/internal/telemetry"
	"pdf-query-system/models"
)

var (
	ErrEmptyQuestion       = errors.New("question is empty")
	ErrPDFNotReady         = errors.New("pdf has not finished processing")
	ErrAnswererUnavailable = errors.New("question answering is not configured")
)

const defaultHistoryLimit = 100

// Answerer produces an answer to a question from document text.
type Answerer interface {
	Answer(ctx context.Context, question, document string) (*ai.Answer, error)
}

// PDFReader is the part of PDFService the query flow depends on.
type PDFReader interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.PDF, error)
	Text(doc *models.PDF) (string, error)
}

type QueryService struct {
	db              *database.Manager
	pdfs            PDFReader
	answerer        Answerer
	cache           AnswerCache
	maxContextChars int
	metrics         *telemetry.Metrics
}

func NewQueryService(db *database.Manager, pdfs PDFReader, answerer Answerer, cache AnswerCache, maxContextChars int, metrics *telemetry.Metrics) *QueryService {
	return &QueryService{
		db:              db,
		pdfs:            pdfs,
		answerer:        answerer,
		cache:           cache,
		maxContextChars: maxContextChars,
		metrics:         metrics,
	}
}

// Ask answers question against the text of a processed PDF and records it.
func (s *QueryService) Ask(ctx context.Context, pdfID primitive.ObjectID, question string) (*models.Query, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if s.answerer == nil {
		return nil, ErrAnswererUnavailable
	}

	doc, err := s.pdfs.Get(ctx, pdfID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: status is %s", ErrPDFNotReady, doc.Status)
	}

	start := time.Now()
	answer, cached := s.lookup(ctx, pdfID.Hex(), question)
	if !cached {
		text, err := s.pdfs.Text(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to read pdf text: %w", err)
		}

		answer, err = s.answerer.Answer(ctx, question, TruncateContext(text, s.maxContextChars))
		if err != nil {
			return nil, err
		}
		s.metrics.RecordTokensUsed(int64(answer.TokensUsed), answer.Model)
		if s.cache != nil {
			s.cache.Set(ctx, pdfID.Hex(), question, answer)
		}
	}

	record := &models.Query{
		ID:        primitive.NewObjectID(),
		PDFID:     pdfID,
		Question:  question,
		Answer:    answer.Text,
		Model:     answer.Model,
		Cached:    cached,
		LatencyMS: time.Since(start).Milliseconds(),
		CreatedAt: time.Now().UTC(),
	}
	if !cached {
		record.TokensUsed = answer.TokensUsed
	}

	coll, err := s.db.Collection(database.QueriesCollection)
	if err != nil {
		return nil, err
	}
	_, err = coll.InsertOne(ctx, record)
	s.metrics.RecordDatabaseOperation("insert", database.QueriesCollection, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to save query: %w", err)
	}

	s.metrics.RecordQueryAnswered(cached)
	logger.Info("query answered", "pdf_id", pdfID.Hex(), "cached", cached, "latency_ms", record.LatencyMS)
	return record, nil
}

func (s *QueryService) lookup(ctx context.Context, pdfID, question string) (*ai.Answer, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, pdfID, question)
}

// History returns the queries asked about a PDF, newest first.
func (s *QueryService) History(ctx context.Context, pdfID primitive.ObjectID, limit int64) ([]models.Query, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	coll, err := s.db.Collection(database.QueriesCollection)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := coll.Find(ctx, bson.M{"pdf_id": pdfID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	queries := []models.Query{}
	if err := cursor.All(ctx, &queries); err != nil {
		return nil, err
	}
	return queries, nil
}

// TruncateContext cuts text to at most maxChars runes. Zero or less means no limit.
func TruncateContext(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}
