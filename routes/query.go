package routes

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pdf-query-system/models"
	"pdf-query-system/services"
	"pdf-query-system/utils"
)

// QueryManager is the query service as seen by the HTTP layer.
type QueryManager interface {
	Ask(ctx context.Context, pdfID primitive.ObjectID, question string) (*models.Query, error)
	History(ctx context.Context, pdfID primitive.ObjectID, limit int64) ([]models.Query, error)
}

// PDFGetter looks up the PDF a history belongs to.
type PDFGetter interface {
	Get(ctx context.Context, id primitive.ObjectID) (*models.PDF, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SetupQueryRoutes mounts question answering and history routes on rg.
func SetupQueryRoutes(rg *gin.RouterGroup, queries QueryManager, pdfs PDFGetter) {
	rg.POST("/query", HandleQuery(queries))
	rg.GET("/queries/:pdf_id", HandleQueryHistory(queries))
	rg.GET("/queries/:pdf_id/export", HandleExportHistory(queries, pdfs))
}

func HandleQuery(queries QueryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", gin.H{"error": err.Error()})
			return
		}

		pdfID, err := services.ParseID(req.PDFID)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		ctx, cancel := utils.WithLongTimeout(c.Request.Context())
		defer cancel()

		record, err := queries.Ask(ctx, pdfID, req.Question)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, record)
	}
}

func HandleQueryHistory(queries QueryManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		pdfID, err := services.ParseID(c.Param("pdf_id"))
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		limit, err := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)
		if err != nil || limit < 1 || limit > 1000 {
			utils.RespondWithBadRequest(c, "limit must be between 1 and 1000", nil)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		history, err := queries.History(ctx, pdfID, limit)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.QueryHistoryResponse{
			PDFID:   pdfID.Hex(),
			Queries: history,
			Count:   len(history),
		})
	}
}

// HandleExportHistory streams the full query history of a PDF as XLSX.
func HandleExportHistory(queries QueryManager, pdfs PDFGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		pdfID, err := services.ParseID(c.Param("pdf_id"))
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		ctx, cancel := utils.WithTimeout(c.Request.Context())
		defer cancel()

		doc, err := pdfs.Get(ctx, pdfID)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		history, err := queries.History(ctx, pdfID, 10000)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		buf, err := services.BuildQueryHistoryWorkbook(doc, history)
		if err != nil {
			respondWithServiceError(c, err)
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="queries_%s.xlsx"`, pdfID.Hex()))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}
