package services

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"pdf-query-system/internal/logger"
	"pdf-query-system/models"
)

const (
	historySheet = "Queries"
	summarySheet = "Summary"
)

// BuildQueryHistoryWorkbook writes the query history of one PDF as an XLSX workbook.
func BuildQueryHistoryWorkbook(doc *models.PDF, queries []models.Query) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"Asked At", "Question", "Answer", "Model", "Cached", "Tokens", "Latency (ms)"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(historySheet, cell, header)
	}

	var totalTokens int
	var cachedCount int
	for rowIdx, q := range queries {
		row := rowIdx + 2
		values := []interface{}{
			q.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			q.Question,
			q.Answer,
			q.Model,
			q.Cached,
			q.TokensUsed,
			q.LatencyMS,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(historySheet, cell, v)
		}
		totalTokens += q.TokensUsed
		if q.Cached {
			cachedCount++
		}
	}

	f.SetColWidth(historySheet, "A", "A", 20)
	f.SetColWidth(historySheet, "B", "C", 60)
	f.SetColWidth(historySheet, "D", "G", 15)

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summaryData := [][]interface{}{
		{"PDF", doc.Filename},
		{"PDF ID", doc.ID.Hex()},
		{"Pages", doc.Pages},
		{"Exported At", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{"Total Queries", len(queries)},
		{"Cached Answers", cachedCount},
		{"Total Tokens", totalTokens},
	}
	for i, row := range summaryData {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			f.SetCellValue(summarySheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}
