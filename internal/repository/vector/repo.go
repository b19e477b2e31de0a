// Package vector stores title records and their embeddings in Redis FT indexes,
// one HASH-backed index per media kind.
package vector

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/animedex/internal/db"
	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Reserved hash fields.
const (
	fieldContent = "__content"
	fieldVector  = "__vector"
	vectorAlias  = "vector"
)

var returnFields = []string{
	fieldContent,
	title.FieldTitle,
	title.FieldScore,
	title.FieldGenres,
	title.FieldMediaType,
	title.FieldStatus,
	title.FieldImageURL,
	title.FieldPopularity,
}

// store is the consumer interface for index storage (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexInfo(ctx context.Context, name string) (db.IndexInfo, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig holds HNSW tuning for new indexes. Zero values use server defaults.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Stored is a title record read back from the index.
type Stored struct {
	ID         int64
	Text       string
	Metadata   title.Metadata
	Vector     []float32
	Projection string
}

// Repo reads and writes title records.
type Repo struct {
	store store
	hnsw  HNSWConfig
}

// New creates a vector repository.
func New(s store, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, hnsw: hnsw}
}

// IndexName returns the FT index name for kind.
func IndexName(kind title.Kind) string {
	return domain.KeyPrefix + string(kind) + ":idx"
}

func keyPrefix(kind title.Kind) string {
	return domain.KeyPrefix + string(kind) + ":"
}

// Key returns the hash key for a title.
func Key(kind title.Kind, id int64) string {
	return keyPrefix(kind) + strconv.FormatInt(id, 10)
}

// EnsureIndex creates the index for kind when missing and returns its info.
// A freshly created index reports the requested dimension.
func (r *Repo) EnsureIndex(ctx context.Context, kind title.Kind, dim int) (db.IndexInfo, error) {
	info, err := r.store.IndexInfo(ctx, IndexName(kind))
	if err == nil {
		return info, nil
	}
	if !errors.Is(err, db.ErrIndexNotFound) {
		return db.IndexInfo{}, fmt.Errorf("inspect index %s: %w", kind, err)
	}

	def, err := r.buildIndex(kind, dim)
	if err != nil {
		return db.IndexInfo{}, err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return db.IndexInfo{}, fmt.Errorf("create index %s: %w", kind, err)
	}
	return db.IndexInfo{Name: def.Name, VectorDim: dim}, nil
}

// Info returns index info; db.ErrIndexNotFound when absent.
func (r *Repo) Info(ctx context.Context, kind title.Kind) (db.IndexInfo, error) {
	info, err := r.store.IndexInfo(ctx, IndexName(kind))
	if err != nil {
		return db.IndexInfo{}, fmt.Errorf("inspect index %s: %w", kind, err)
	}
	return info, nil
}

// DropIndex removes the index for kind together with its records.
func (r *Repo) DropIndex(ctx context.Context, kind title.Kind) error {
	err := r.store.DropIndex(ctx, IndexName(kind), true)
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", kind, err)
	}
	return nil
}

func (r *Repo) buildIndex(kind title.Kind, dim int) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(IndexName(kind)).
		Prefix(keyPrefix(kind)).
		Text(fieldContent).
		VectorHNSW(fieldVector, vectorAlias, dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Tag(title.FieldTitle, ",").
		Tag(title.FieldGenres, ",").
		Tag(title.FieldMediaType, "").
		Numeric(title.FieldScore).
		Numeric(title.FieldPopularity).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", kind, err)
	}
	return def, nil
}

// Upsert writes records with their vectors in one pipelined round-trip.
func (r *Repo) Upsert(ctx context.Context, kind title.Kind, records []title.Record, vectors [][]float32) error {
	if len(records) != len(vectors) {
		return fmt.Errorf("upsert %s: %d records, %d vectors", kind, len(records), len(vectors))
	}

	items := make([]db.HashSetItem, len(records))
	for i := range records {
		fields := records[i].Metadata.Fields()
		fields[fieldContent] = records[i].Text
		fields[fieldVector] = vectorToBytes(vectors[i])
		fields[title.FieldProjection] = title.ProjectionVersion
		items[i] = db.HashSetItem{Key: Key(kind, records[i].ID), Fields: fields}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %s: %w", kind, err)
	}
	return nil
}

// Get reads one record. ok is false when the key is absent.
func (r *Repo) Get(ctx context.Context, kind title.Kind, id int64) (Stored, bool, error) {
	fields, err := r.store.HGetAll(ctx, Key(kind, id))
	if err != nil {
		return Stored{}, false, fmt.Errorf("get %s %d: %w", kind, id, err)
	}
	if len(fields) == 0 {
		return Stored{}, false, nil
	}

	md, err := title.MetadataFromFields(fields)
	if err != nil {
		return Stored{}, false, fmt.Errorf("get %s %d: %w", kind, id, err)
	}
	return Stored{
		ID:         id,
		Text:       fields[fieldContent],
		Metadata:   md,
		Vector:     bytesToVector(fields[fieldVector]),
		Projection: fields[title.FieldProjection],
	}, true, nil
}

// KNN returns nearest neighbours of vec ordered by similarity descending.
func (r *Repo) KNN(
	ctx context.Context, kind title.Kind, vec []float32, k int, filters filter.Expression,
) ([]result.Result, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName(kind),
		Filters:      filters,
		Vector:       vec,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", kind, err)
	}
	return toResults(sr, kind, func(score float64) float64 { return score }), nil
}

// Text runs a BM25 query over the projected content. Similarity is s/(1+s),
// which keeps the ordering and maps into [0,1).
func (r *Repo) Text(
	ctx context.Context, kind title.Kind, query string, k int, filters filter.Expression,
) ([]result.Result, error) {
	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    IndexName(kind),
		Query:        query,
		AnyTerm:      true,
		Filters:      filters,
		TopK:         k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search text %s: %w", kind, err)
	}
	return toResults(sr, kind, func(score float64) float64 {
		if score <= 0 {
			return 0
		}
		return score / (1 + score)
	}), nil
}

// Count returns the number of indexed records for kind.
func (r *Repo) Count(ctx context.Context, kind title.Kind) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName(kind), "*")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// toResults keeps the index order and drops entries with an unparsable id or
// metadata that fails validation.
func toResults(sr *db.SearchResult, kind title.Kind, similarity func(float64) float64) []result.Result {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	prefix := keyPrefix(kind)
	out := make([]result.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id, err := strconv.ParseInt(strings.TrimPrefix(e.Key, prefix), 10, 64)
		if err != nil {
			continue
		}
		md, err := title.MetadataFromFields(e.Fields)
		if err != nil {
			continue
		}
		out = append(out, result.Result{
			TitleID:    id,
			Metadata:   md,
			Document:   e.Fields[fieldContent],
			Similarity: similarity(e.Score),
		})
	}
	return out
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

func bytesToVector(s string) []float32 {
	if len(s) == 0 || len(s)%4 != 0 {
		return nil
	}
	b := []byte(s)
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}
