package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"pdf-query-system/models"
)

func TestBuildQueryHistoryWorkbook(t *testing.T) {
	doc := &models.PDF{ID: primitive.NewObjectID(), Filename: "invoice.pdf", Pages: 2}
	queries := []models.Query{
		{Question: "What is the total?", Answer: "350 EUR", Model: "gemini", TokensUsed: 12, CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Question: "Who pays?", Answer: "ACME", Model: "gemini", Cached: true},
	}

	buf, err := BuildQueryHistoryWorkbook(doc, queries)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(historySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Question", header)

	asked, _ := f.GetCellValue(historySheet, "A2")
	assert.Equal(t, "2025-01-02 03:04:05", asked)
	answer, _ := f.GetCellValue(historySheet, "C3")
	assert.Equal(t, "ACME", answer)

	total, _ := f.GetCellValue(summarySheet, "B5")
	assert.Equal(t, "2", total)
	filename, _ := f.GetCellValue(summarySheet, "B1")
	assert.Equal(t, "invoice.pdf", filename)
}
