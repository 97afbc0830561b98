package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pdf-query-system/internal/config"
	"pdf-query-system/internal/database"
	"pdf-query-system/internal/logger"
	"pdf-query-system/internal/storage"
	"pdf-query-system/internal/telemetry"
	"pdf-query-system/models"
	"pdf-query-system/utils"
)

var (
	ErrPDFNotFound      = errors.New("pdf not found")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrFileTooLarge     = errors.New("file exceeds maximum size")
	ErrEmptyFile        = errors.New("file is empty")
	ErrProcessingFailed = errors.New("pdf processing failed")
)

// Enqueuer hands a stored PDF to the background worker.
type Enqueuer interface {
	EnqueuePDF(ctx context.Context, pdfID string) (string, error)
}

// PDFService owns the pdfs collection and the stored originals.
type PDFService struct {
	db        *database.Manager
	store     storage.Store
	extractor *PDFExtractor
	queue     Enqueuer
	metrics   *telemetry.Metrics
	maxSize   int64
}

func NewPDFService(cfg *config.Config, db *database.Manager, store storage.Store, metrics *telemetry.Metrics) *PDFService {
	return &PDFService{
		db:        db,
		store:     store,
		extractor: NewPDFExtractor(cfg.MaxFileSize),
		metrics:   metrics,
		maxSize:   cfg.MaxFileSize,
	}
}

// SetQueue switches processing from inline to the background worker.
func (s *PDFService) SetQueue(q Enqueuer) {
	s.queue = q
}

type UploadInput struct {
	Filename string
	Data     []byte
}

type UploadResult struct {
	PDF       *models.PDF
	Duplicate bool
	TaskID    string
}

// ParseID converts a hex path parameter into an ObjectID.
func ParseID(hexID string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrInvalidID, hexID)
	}
	return id, nil
}

func (s *PDFService) collection() (*mongo.Collection, error) {
	return s.db.Collection(database.PDFsCollection)
}

// Upload stores the original, records it, and extracts its text either
// inline or through the queue. A byte-identical upload returns the existing record.
func (s *PDFService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if err := s.validateUpload(in); err != nil {
		return nil, err
	}
	if !HasPDFHeader(in.Data) {
		return nil, ErrInvalidPDF
	}

	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(in.Data)
	fileHash := hex.EncodeToString(sum[:])

	existing, err := s.findDuplicate(ctx, coll, fileHash)
	if err != nil {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}
	if existing != nil {
		return &UploadResult{PDF: existing, Duplicate: true}, nil
	}

	obj, err := s.store.Upload(ctx, uuid.NewString(), bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return nil, fmt.Errorf("file storage failed: %w", err)
	}

	now := time.Now().UTC()
	doc := &models.PDF{
		ID:       primitive.NewObjectID(),
		Filename: in.Filename,
		FileHash: fileHash,
		DedupKey: fileHash,
		Size:     int64(len(in.Data)),
		Storage: models.StorageRef{
			Provider: obj.Provider,
			PublicID: obj.PublicID,
			URL:      obj.URL,
		},
		Status:     models.StatusPending,
		UploadedAt: now,
		UpdatedAt:  now,
	}

	_, err = coll.InsertOne(ctx, doc)
	s.metrics.RecordDatabaseOperation("insert", database.PDFsCollection, err == nil)
	if err != nil {
		if delErr := s.store.Delete(ctx, obj.PublicID); delErr != nil {
			logger.Warn("failed to clean up stored file", "public_id", obj.PublicID, "error", delErr)
		}
		// A concurrent upload of the same file won the unique dedup_key index.
		if mongo.IsDuplicateKeyError(err) {
			if existing, findErr := s.findDuplicate(ctx, coll, fileHash); findErr == nil && existing != nil {
				return &UploadResult{PDF: existing, Duplicate: true}, nil
			}
		}
		return nil, fmt.Errorf("failed to save pdf record: %w", err)
	}

	result := &UploadResult{PDF: doc}

	if s.queue != nil {
		taskID, err := s.queue.EnqueuePDF(ctx, doc.ID.Hex())
		if err == nil {
			result.TaskID = taskID
			logger.Info("pdf queued for processing", "pdf_id", doc.ID.Hex(), "task_id", taskID)
			return result, nil
		}
		logger.Warn("enqueue failed, processing inline", "pdf_id", doc.ID.Hex(), "error", err)
	}

	procErr := s.Process(ctx, doc.ID, in.Data)
	if updated, err := s.Get(ctx, doc.ID); err == nil {
		result.PDF = updated
	}
	if procErr != nil {
		return result, fmt.Errorf("%w: %v", ErrProcessingFailed, procErr)
	}
	return result, nil
}

func (s *PDFService) validateUpload(in UploadInput) error {
	if len(in.Data) == 0 {
		return ErrEmptyFile
	}
	if s.maxSize > 0 && int64(len(in.Data)) > s.maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(in.Data), s.maxSize)
	}
	return validateFilename(in.Filename)
}

// validateFilename ensures filename is safe
func validateFilename(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidFilename)
	}
	if len(filename) > 255 {
		return fmt.Errorf("%w: too long (max 255 characters)", ErrInvalidFilename)
	}

	dangerous := []string{"../", "..\\", "<", ">", ":", "\"", "|", "?", "*", "\x00"}
	for _, char := range dangerous {
		if strings.Contains(filename, char) {
			return fmt.Errorf("%w: contains invalid characters", ErrInvalidFilename)
		}
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return fmt.Errorf("%w: only .pdf files are allowed", ErrInvalidFilename)
	}
	return nil
}

// findDuplicate ignores failed uploads so a file can be retried. Failed
// records lose their dedup_key.
func (s *PDFService) findDuplicate(ctx context.Context, coll *mongo.Collection, fileHash string) (*models.PDF, error) {
	var existing models.PDF
	err := coll.FindOne(ctx, bson.M{"dedup_key": fileHash}).Decode(&existing)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// Process extracts text from content and stores it on the PDF record.
func (s *PDFService) Process(ctx context.Context, id primitive.ObjectID, content []byte) error {
	start := time.Now()

	if err := s.updateStatus(ctx, id, models.StatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	result, err := s.extractor.Extract(ctx, content)
	if err != nil {
		s.metrics.RecordPDFProcessing(time.Since(start).Seconds(), models.StatusFailed)
		return s.fail(ctx, id, err)
	}

	packed, algorithm, err := utils.CompressText(result.Text())
	if err != nil {
		s.metrics.RecordPDFProcessing(time.Since(start).Seconds(), models.StatusFailed)
		return s.fail(ctx, id, fmt.Errorf("failed to compress text: %w", err))
	}

	coll, err := s.collection()
	if err != nil {
		return s.fail(ctx, id, err)
	}

	now := time.Now().UTC()
	_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"status":       models.StatusCompleted,
			"pages":        result.PageCount,
			"char_count":   result.CharCount,
			"content":      packed,
			"compression":  string(algorithm),
			"processed_at": now,
			"updated_at":   now,
		},
		"$unset": bson.M{"error_message": ""},
	})
	s.metrics.RecordDatabaseOperation("update", database.PDFsCollection, err == nil)
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("failed to save extracted text: %w", err))
	}

	s.metrics.RecordPDFProcessing(time.Since(start).Seconds(), models.StatusCompleted)
	logger.Info("pdf processed", "pdf_id", id.Hex(), "pages", result.PageCount, "chars", result.CharCount, "duration", time.Since(start).String())
	return nil
}

// ProcessStored downloads the original from media storage and processes it.
func (s *PDFService) ProcessStored(ctx context.Context, id primitive.ObjectID) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	rc, err := s.store.Fetch(ctx, storage.Object{
		Provider: doc.Storage.Provider,
		PublicID: doc.Storage.PublicID,
		URL:      doc.Storage.URL,
	})
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("failed to fetch stored pdf: %w", err))
	}
	defer rc.Close()

	limit := s.maxSize
	if limit <= 0 {
		limit = 200 << 20
	}
	content, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return s.fail(ctx, id, fmt.Errorf("failed to read stored pdf: %w", err))
	}
	if int64(len(content)) > limit {
		return s.fail(ctx, id, fmt.Errorf("%w: stored object exceeds %d bytes", ErrFileTooLarge, limit))
	}

	return s.Process(ctx, id, content)
}

func (s *PDFService) Get(ctx context.Context, id primitive.ObjectID) (*models.PDF, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	var doc models.PDF
	err = coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPDFNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns PDFs newest first without their text.
func (s *PDFService) List(ctx context.Context, limit, skip int64) (*models.PDFListResponse, error) {
	coll, err := s.collection()
	if err != nil {
		return nil, err
	}

	total, err := coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "uploaded_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip).
		SetProjection(bson.M{"content": 0})
	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	pdfs := []models.PDF{}
	if err := cursor.All(ctx, &pdfs); err != nil {
		return nil, err
	}

	return &models.PDFListResponse{PDFs: pdfs, Total: total, Limit: limit, Skip: skip}, nil
}

// Delete removes the record, its stored original and its query history.
func (s *PDFService) Delete(ctx context.Context, id primitive.ObjectID) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if doc.Storage.PublicID != "" {
		if err := s.store.Delete(ctx, doc.Storage.PublicID); err != nil {
			logger.Warn("failed to delete stored file", "pdf_id", id.Hex(), "public_id", doc.Storage.PublicID, "error", err)
		}
	}

	queries, err := s.db.Collection(database.QueriesCollection)
	if err != nil {
		return err
	}
	if _, err := queries.DeleteMany(ctx, bson.M{"pdf_id": id}); err != nil {
		return fmt.Errorf("failed to delete queries: %w", err)
	}

	coll, err := s.collection()
	if err != nil {
		return err
	}
	_, err = coll.DeleteOne(ctx, bson.M{"_id": id})
	s.metrics.RecordDatabaseOperation("delete", database.PDFsCollection, err == nil)
	return err
}

// Text returns the extracted text of a processed PDF.
func (s *PDFService) Text(doc *models.PDF) (string, error) {
	return utils.DecompressText(doc.Content, utils.CompressionAlgorithm(doc.Compression))
}

// MarkStale fails PDFs stuck in processing for longer than olderThan.
func (s *PDFService) MarkStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	coll, err := s.collection()
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	res, err := coll.UpdateMany(ctx,
		bson.M{
			"status":     bson.M{"$in": []string{models.StatusPending, models.StatusProcessing}},
			"updated_at": bson.M{"$lt": now.Add(-olderThan)},
		},
		bson.M{
			"$set": bson.M{
				"status":        models.StatusFailed,
				"error_message": "processing timed out",
				"updated_at":    now,
			},
			"$unset": bson.M{"dedup_key": ""},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// fail records err on the PDF so readers never see it stuck in pending or
// processing, then returns err unchanged.
func (s *PDFService) fail(ctx context.Context, id primitive.ObjectID, err error) error {
	if updErr := s.updateStatus(ctx, id, models.StatusFailed, err.Error()); updErr != nil {
		logger.Error("failed to mark pdf failed", "pdf_id", id.Hex(), "error", updErr)
	}
	return err
}

// updateStatus updates the processing status of a PDF
func (s *PDFService) updateStatus(ctx context.Context, id primitive.ObjectID, status, errorMessage string) error {
	coll, err := s.collection()
	if err != nil {
		return err
	}

	set := bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if errorMessage != "" {
		set["error_message"] = errorMessage
	}
	update := bson.M{"$set": set}
	if status == models.StatusFailed {
		set["processed_at"] = time.Now().UTC()
		update["$unset"] = bson.M{"dedup_key": ""}
	}

	_, err = coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	s.metrics.RecordDatabaseOperation("update", database.PDFsCollection, err == nil)
	return err
}
