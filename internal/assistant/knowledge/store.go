package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/lenden-assist/server/internal/assistant/model"
	errx "github.com/lenden-assist/server/internal/core/error"
	logx "github.com/lenden-assist/server/pkg/logger"
)

// Result is a single semantic-search hit.
type Result struct {
	Content  string
	Citation string
	Score    float32
}

// Querier is the read side of the knowledge store consumed by the query path.
type Querier interface {
	Query(ctx context.Context, category model.Category, text string, k int) ([]Result, error)
}

// Store wraps chromem-go with per-category collections and disk persistence.
// Uploaded item metadata is kept in a JSON catalog next to the vector data so
// the admin listing survives restarts.
type Store struct {
	mu      sync.RWMutex
	db      *chromem.DB
	embedFn chromem.EmbeddingFunc
	dataDir string
	catalog map[string]model.KnowledgeItem
}

// New creates (or opens) the persistent vector store at dataDir/knowledge/.
// embedFunc is the embedding function, typically
// chromem.NewEmbeddingFuncOpenAICompat pointed at the configured embeddings
// endpoint.
func New(cfg model.KnowledgeConfig, embedFunc chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(cfg.DataDir, "knowledge")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create knowledge dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "vectors"), false)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	s := &Store{
		db:      db,
		embedFn: embedFunc,
		dataDir: dir,
		catalog: make(map[string]model.KnowledgeItem),
	}
	if err := s.loadCatalog(); err != nil {
		return nil, err
	}
	return s, nil
}

func collectionName(category model.Category) string {
	return fmt.Sprintf("kb_%s", category)
}

// getOrCreateCollection returns (or creates) the per-category collection.
func (s *Store) getOrCreateCollection(category model.Category) *chromem.Collection {
	name := collectionName(category)
	col := s.db.GetCollection(name, s.embedFn)
	if col == nil {
		var err error
		col, err = s.db.CreateCollection(name, nil, s.embedFn)
		if err != nil {
			logx.Error().Err(err).Str("category", category.String()).Msg("failed to create knowledge collection")
			return nil
		}
	}
	return col
}

// Upsert indexes (or re-indexes) an item. Missing id and created_at are
// assigned here; the stored item is returned.
func (s *Store) Upsert(ctx context.Context, item model.KnowledgeItem) (model.KnowledgeItem, error) {
	if item.Content == "" {
		return model.KnowledgeItem{}, errx.InvalidInput("knowledge item content is empty")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if _, ok := model.ParseCategory(item.Category.String()); !ok {
		item.Category = model.CategoryGeneral
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	col := s.getOrCreateCollection(item.Category)
	if col == nil {
		return model.KnowledgeItem{}, errx.Upstream(nil, fmt.Sprintf("nil collection for category %s", item.Category))
	}

	doc := chromem.Document{
		ID:      item.ID,
		Content: item.Content,
		Metadata: map[string]string{
			"title": item.Title,
			"type":  item.Type,
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return model.KnowledgeItem{}, errx.Upstream(err, "failed to index knowledge item")
	}

	s.catalog[item.ID] = item
	if err := s.saveCatalog(); err != nil {
		return model.KnowledgeItem{}, err
	}
	return item, nil
}

// Query returns the top-k items in the category most similar to the text.
// An empty result set is not an error.
func (s *Store) Query(ctx context.Context, category model.Category, text string, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collectionName(category), s.embedFn)
	if col == nil {
		return nil, nil
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	var results []chromem.Result
	var err error

	// chromem-go sometimes throws "nResults must be <= number of documents"
	// despite Count checks. Step down k if it fails.
	for attemptK := k; attemptK > 0; attemptK-- {
		results, err = col.Query(ctx, text, attemptK, nil, nil)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, errx.Upstream(err, "knowledge query failed")
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			Content:  r.Content,
			Citation: r.ID,
			Score:    r.Similarity,
		})
	}
	return out, nil
}

// List returns all uploaded items, newest first.
func (s *Store) List(_ context.Context) ([]model.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.KnowledgeItem, 0, len(s.catalog))
	for _, item := range s.catalog {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) catalogPath() string {
	return filepath.Join(s.dataDir, "catalog.json")
}

func (s *Store) loadCatalog() error {
	b, err := os.ReadFile(s.catalogPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read knowledge catalog: %w", err)
	}
	if err := json.Unmarshal(b, &s.catalog); err != nil {
		return fmt.Errorf("decode knowledge catalog: %w", err)
	}
	return nil
}

func (s *Store) saveCatalog() error {
	b, err := json.Marshal(s.catalog)
	if err != nil {
		return fmt.Errorf("encode knowledge catalog: %w", err)
	}
	if err := os.WriteFile(s.catalogPath(), b, 0640); err != nil {
		return fmt.Errorf("write knowledge catalog: %w", err)
	}
	return nil
}

var _ Querier = (*Store)(nil)
