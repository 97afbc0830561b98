package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressTextPicksAlgorithmBySize(t *testing.T) {
	small := "short page"
	data, algo, err := CompressText(small)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, algo)
	assert.Equal(t, small, string(data))

	large := strings.Repeat("The quarterly report lists revenue by region. ", 200)
	data, algo, err = CompressText(large)
	require.NoError(t, err)
	assert.Equal(t, CompressionBrotli, algo)
	assert.Less(t, len(data), len(large))

	text, err := DecompressText(data, algo)
	require.NoError(t, err)
	assert.Equal(t, large, text)
}

func TestDecompressGzip(t *testing.T) {
	packed, err := CompressData([]byte("page one"), CompressionGzip)
	require.NoError(t, err)

	out, err := DecompressData(packed, CompressionGzip)
	require.NoError(t, err)
	assert.Equal(t, "page one", string(out))
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := CompressData([]byte("x"), "lz4")
	assert.Error(t, err)
	_, err = DecompressData([]byte("x"), "lz4")
	assert.Error(t, err)
}
