package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pdf-query-system/middleware"
	"pdf-query-system/models"
	"pdf-query-system/services"
	"pdf-query-system/utils"
)

// PDFManager is the PDF service as seen by the HTTP layer.
type PDFManager interface {
	Upload(ctx context.Context, in services.UploadInput) (*services.UploadResult, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.PDF, error)
	List(ctx context.Context, limit, skip int64) (*models.PDFListResponse, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// SetupPDFRoutes mounts upload and document management routes on rg.
func SetupPDFRoutes(rg *gin.RouterGroup, pdfs PDFManager, maxFileSize int64) {
	// multipart overhead on top of the file itself
	rg.POST("/upload", middleware.RequestSizeLimit(maxFileSize+1<<20), HandleUpload(pdfs, maxFileSize))
	rg.GET("/pdfs", HandleListPDFs(pdfs))
	rg.GET("/pdfs/:pdf_id", HandleGetPDF(pdfs))
	rg.DELETE("/pdfs/:pdf_id", HandleDeletePDF(pdfs))
}

// HandleUpload accepts a multipart "file" field holding a PDF.
func HandleUpload(pdfs PDFManager, maxFileSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				respondWithServiceError(c, err)
				return
			}
			utils.RespondWithBadRequest(c, "No file uploaded", gin.H{"field": "file"})
			return
		}
		if header.Size > maxFileSize {
			respondWithServiceError(c, services.ErrFileTooLarge)
			return
		}

		file, err := header.Open()
		if err != nil {
			utils.RespondWithBadRequest(c, "Could not read uploaded file", nil)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
		if err != nil {
			utils.RespondWithBadRequest(c, "Could not read uploaded file", nil)
			return
		}

		ctx, cancel := utils.WithUploadTimeout(c.Request.Context())
		defer cancel()

		result, err := pdfs.Upload(ctx, services.UploadInput{Filename: header.Filename, Data: data})
		if err != nil {
			if result != nil && errors.Is(err, services.ErrProcessingFailed) {
				utils.RespondWithError(c, http.StatusUnprocessableEntity, "processing_failed", err.Error(), toUploadResponse(result))
				return
			}
			respondWithServiceError(c, err)
			return
		}

		status := http.StatusCreated
		switch {
		case result.Duplicate:
			status = http.StatusOK
		case result.TaskID != "":
			status = http.StatusAccepted
		}
		c.JSON(status, toUploadResponse(result))
	}
}

func toUploadResponse(result *services.UploadResult) models.UploadResponse {
	resp := models.UploadResponse{
		ID:        result.PDF.ID.Hex(),
		Filename:  result.PDF.Filename,
		Status:    result.PDF.Status,
		Pages:     result.PDF.Pages,
		URL:       result.PDF.Storage.URL,
		Duplicate: result.Duplicate,
	}
	switch {
	case result.Duplicate:
		resp.Message = "File already uploaded"
	case result.TaskID != "":
		resp.Message = "PDF queued for processing"
	case result.PDF.Status == models.StatusFailed:
		resp.Message = "PDF processing failed"
	default:
		resp.Message = "PDF uploaded and processed successfully"
	}
	return resp
}

func HandleListPDFs(pdfs PDFManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, skip, ok := pagination(c)
		if !ok {
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		list, err := pdfs.List(ctx, limit, skip)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func HandleGetPDF(pdfs PDFManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := services.ParseID(c.Param("pdf_id"))
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		doc, err := pdfs.Get(ctx, id)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func HandleDeletePDF(pdfs PDFManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := services.ParseID(c.Param("pdf_id"))
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		if err := pdfs.Delete(ctx, id); err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "PDF deleted", "id": id.Hex()})
	}
}

// pagination reads limit (1..100, default 20) and skip (>= 0).
func pagination(c *gin.Context) (limit, skip int64, ok bool) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit < 1 || limit > 100 {
		utils.RespondWithBadRequest(c, "limit must be between 1 and 100", nil)
		return 0, 0, false
	}
	skip, err = strconv.ParseInt(c.DefaultQuery("skip", "0"), 10, 64)
	if err != nil || skip < 0 {
		utils.RespondWithBadRequest(c, "skip must be a non-negative integer", nil)
		return 0, 0, false
	}
	return limit, skip, true
}
