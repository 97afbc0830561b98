package database

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson" // Use bson for index keys
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PDFsCollection    = "pdfs"
	QueriesCollection = "queries"
)

// ErrNotConnected is returned by any accessor used before Connect or after Disconnect.
var ErrNotConnected = errors.New("database: not connected")

// Manager owns the process-wide MongoDB client.
type Manager struct {
	uri    string
	dbName string

	mu     sync.RWMutex
	client *mongo.Client
}

func NewManager(uri, dbName string) *Manager {
	return &Manager{uri: uri, dbName: dbName}
}

// Connect opens the client and pings the primary. A client that fails the
// ping is disconnected again so the manager stays unconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client
	return nil
}

// Disconnect releases the client. Calling it on an unconnected manager is a no-op.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	return nil
}

// Connected reports whether a client is held. It goes false after Disconnect.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

func (m *Manager) Client() (*mongo.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, ErrNotConnected
	}
	return m.client, nil
}

func (m *Manager) Database() (*mongo.Database, error) {
	client, err := m.Client()
	if err != nil {
		return nil, err
	}
	return client.Database(m.dbName), nil
}

func (m *Manager) Collection(name string) (*mongo.Collection, error) {
	db, err := m.Database()
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

func (m *Manager) Ping(ctx context.Context) error {
	client, err := m.Client()
	if err != nil {
		return err
	}
	return client.Ping(ctx, nil)
}

// NewManagerFromClient wraps an already connected client, such as the mock
// deployment client in tests.
func NewManagerFromClient(client *mongo.Client, dbName string) *Manager {
	return &Manager{dbName: dbName, client: client}
}

// QueryIndexModels lists the secondary indexes on the queries collection:
// pdf_id groups records by document, created_at serves time sorting.
func QueryIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "pdf_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	}
}

// EnsureQueryIndexes creates the queries indexes. MongoDB treats an identical
// index spec as already present, so this is safe on every startup.
func EnsureQueryIndexes(ctx context.Context, db *mongo.Database) ([]string, error) {
	names, err := db.Collection(QueriesCollection).Indexes().CreateMany(ctx, QueryIndexModels())
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes on %s: %w", QueriesCollection, err)
	}
	return names, nil
}

func (m *Manager) EnsureQueryIndexes(ctx context.Context) error {
	db, err := m.Database()
	if err != nil {
		return err
	}
	_, err = EnsureQueryIndexes(ctx, db)
	return err
}

// PDFIndexModels lists the indexes on the pdfs collection. dedup_key holds the
// file hash only while a record is not failed, so the partial unique index
// admits one live record per file and any number of failed ones.
func PDFIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "dedup_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"dedup_key": bson.M{"$exists": true}}),
		},
		{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
	}
}

func EnsurePDFIndexes(ctx context.Context, db *mongo.Database) ([]string, error) {
	names, err := db.Collection(PDFsCollection).Indexes().CreateMany(ctx, PDFIndexModels())
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes on %s: %w", PDFsCollection, err)
	}
	return names, nil
}

func (m *Manager) EnsurePDFIndexes(ctx context.Context) error {
	db, err := m.Database()
	if err != nil {
		return err
	}
	_, err = EnsurePDFIndexes(ctx, db)
	return err
}

// VerifyQueryIndexes reports an error naming any queries index key that has
// no single-field index.
func VerifyQueryIndexes(ctx context.Context, db *mongo.Database) error {
	cursor, err := db.Collection(QueriesCollection).Indexes().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes on %s: %w", QueriesCollection, err)
	}
	var specs []bson.M
	if err := cursor.All(ctx, &specs); err != nil {
		return err
	}

	if missing := missingIndexKeys(specs); len(missing) > 0 {
		return fmt.Errorf("missing indexes on %s: %v", QueriesCollection, missing)
	}
	return nil
}

func missingIndexKeys(specs []bson.M) []string {
	present := map[string]bool{}
	for _, spec := range specs {
		keys, ok := spec["key"].(bson.M)
		if !ok || len(keys) != 1 {
			continue
		}
		for k := range keys {
			present[k] = true
		}
	}

	var missing []string
	for _, model := range QueryIndexModels() {
		key := model.Keys.(bson.D)[0].Key
		if !present[key] {
			missing = append(missing, key)
		}
	}
	return missing
}
