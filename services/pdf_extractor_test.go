package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-query-system/internal/testutil"
)

func TestExtractPages(t *testing.T) {
	content := testutil.MinimalPDF("Invoice number 1042", "Total due 350 EUR")

	res, err := NewPDFExtractor(0).Extract(context.Background(), content)
	require.NoError(t, err)

	assert.Equal(t, 2, res.PageCount)
	assert.Contains(t, res.Pages[0], "Invoice number 1042")
	assert.Contains(t, res.Pages[1], "Total due 350 EUR")
	assert.Positive(t, res.CharCount)

	text := res.Text()
	assert.Contains(t, text, "--- PAGE 1 ---")
	assert.Contains(t, text, "--- PAGE 2 ---")
}

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := NewPDFExtractor(0).Extract(context.Background(), []byte("hello"))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestExtractRespectsMaxSize(t *testing.T) {
	content := testutil.MinimalPDF("page")
	_, err := NewPDFExtractor(10).Extract(context.Background(), content)
	assert.Error(t, err)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDFExtractor(0).Extract(ctx, testutil.MinimalPDF("page"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResultTextSkipsEmptyPages(t *testing.T) {
	res := &ExtractionResult{Pages: []string{"", "second"}}
	assert.Equal(t, "--- PAGE 2 ---\nsecond", res.Text())
}
