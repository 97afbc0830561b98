package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"pdf-query-system/internal/ai"
	"pdf-query-system/internal/database"
	"pdf-query-system/models"
)

func TestTruncateContext(t *testing.T) {
	assert.Equal(t, "hello", TruncateContext("hello", 0))
	assert.Equal(t, "hello", TruncateContext("hello", 10))
	assert.Equal(t, "hel", TruncateContext("hello", 3))
	assert.Equal(t, "žš", TruncateContext("žšč", 2))
}

func TestAnswerKeyNormalizesQuestion(t *testing.T) {
	a := answerKey("p1", "What is  the TOTAL?")
	b := answerKey("p1", "  what is the total? ")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, answerKey("p2", "what is the total?"))
}

func TestAskPreconditions(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{doc: &models.PDF{Status: models.StatusProcessing}}
	db := database.NewManager("unused", "test")

	svc := NewQueryService(db, reader, &fakeAnswerer{}, nil, 100, nil)
	_, err := svc.Ask(ctx, primitive.NewObjectID(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	_, err = svc.Ask(ctx, primitive.NewObjectID(), "total?")
	assert.ErrorIs(t, err, ErrPDFNotReady)

	reader.err = ErrPDFNotFound
	_, err = svc.Ask(ctx, primitive.NewObjectID(), "total?")
	assert.ErrorIs(t, err, ErrPDFNotFound)

	svc = NewQueryService(db, reader, nil, nil, 100, nil)
	_, err = svc.Ask(ctx, primitive.NewObjectID(), "total?")
	assert.ErrorIs(t, err, ErrAnswererUnavailable)
}

func TestQueryServiceMock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("ask records query and caches answer", func(mt *mtest.T) {
		db := database.NewManagerFromClient(mt.Client, mt.DB.Name())
		reader := &fakeReader{doc: &models.PDF{Status: models.StatusCompleted}, text: "0123456789"}
		answerer := &fakeAnswerer{}
		cache := newMapCache()
		svc := NewQueryService(db, reader, answerer, cache, 4, nil)
		pdfID := primitive.NewObjectID()

		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		first, err := svc.Ask(context.Background(), pdfID, "What is the total?")
		require.NoError(mt, err)
		assert.Equal(mt, "42", first.Answer)
		assert.False(mt, first.Cached)
		assert.Equal(mt, 7, first.TokensUsed)
		assert.Equal(mt, pdfID, first.PDFID)
		assert.Equal(mt, "0123", answerer.document)

		second, err := svc.Ask(context.Background(), pdfID, "what is the total?")
		require.NoError(mt, err)
		assert.True(mt, second.Cached)
		assert.Equal(mt, 1, answerer.calls)
	})

	mt.Run("answerer error is not recorded", func(mt *mtest.T) {
		db := database.NewManagerFromClient(mt.Client, mt.DB.Name())
		reader := &fakeReader{doc: &models.PDF{Status: models.StatusCompleted}, text: "text"}
		svc := NewQueryService(db, reader, &fakeAnswerer{err: ai.ErrUnavailable}, nil, 0, nil)

		_, err := svc.Ask(context.Background(), primitive.NewObjectID(), "q")
		assert.ErrorIs(mt, err, ai.ErrUnavailable)
	})

	mt.Run("history", func(mt *mtest.T) {
		db := database.NewManagerFromClient(mt.Client, mt.DB.Name())
		svc := NewQueryService(db, &fakeReader{}, nil, nil, 0, nil)
		pdfID := primitive.NewObjectID()
		ns := mt.DB.Name() + "." + database.QueriesCollection
		now := time.Now().UTC().Truncate(time.Millisecond)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "pdf_id", Value: pdfID}, {Key: "question", Value: "b"}, {Key: "created_at", Value: now}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "pdf_id", Value: pdfID}, {Key: "question", Value: "a"}, {Key: "created_at", Value: now.Add(-time.Minute)}},
		))

		queries, err := svc.History(context.Background(), pdfID, 0)
		require.NoError(mt, err)
		require.Len(mt, queries, 2)
		assert.Equal(mt, "b", queries[0].Question)
		assert.Equal(mt, pdfID, queries[1].PDFID)
	})
}
