package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pdf-query-system/internal/config"
	"pdf-query-system/internal/logger"
	"pdf-query-system/services"
)

const (
	TaskProcessPDF = "pdf:process"

	QueueCritical = "critical"
	QueueDefault  = "default"
)

type PDFProcessPayload struct {
	PDFID string `json:"pdf_id"`
}

// Task creators
func NewPDFProcessTask(pdfID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFProcessPayload{PDFID: pdfID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessPDF,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueCritical),
	), nil
}

// RedisConnOpt converts the shared Redis settings into asynq options.
func RedisConnOpt(cfg *config.Config) (asynq.RedisClientOpt, error) {
	opts, err := config.RedisOptions(cfg)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// Client enqueues PDF processing tasks.
type Client struct {
	client *asynq.Client
}

func NewClient(opt asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(opt)}
}

func (c *Client) EnqueuePDF(ctx context.Context, pdfID string) (string, error) {
	task, err := NewPDFProcessTask(pdfID)
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", TaskProcessPDF, err)
	}
	return info.ID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Processor is the part of the PDF service the worker runs.
type Processor interface {
	ProcessStored(ctx context.Context, id primitive.ObjectID) error
}

// Task handlers
type TaskProcessor struct {
	pdfs Processor
}

func NewTaskProcessor(pdfs Processor) *TaskProcessor {
	return &TaskProcessor{pdfs: pdfs}
}

// ProcessPDF extracts text for a stored PDF. Failures that cannot change on
// retry skip the retry queue.
func (p *TaskProcessor) ProcessPDF(ctx context.Context, t *asynq.Task) error {
	var payload PDFProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	id, err := services.ParseID(payload.PDFID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	logger.Info("processing pdf", "pdf_id", payload.PDFID)

	err = p.pdfs.ProcessStored(ctx, id)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, services.ErrPDFNotFound),
		errors.Is(err, services.ErrInvalidPDF),
		errors.Is(err, services.ErrNoText),
		errors.Is(err, services.ErrFileTooLarge):
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	default:
		return err
	}
}

// NewServeMux routes task types to their handlers.
func NewServeMux(p *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessPDF, p.ProcessPDF)
	return mux
}
