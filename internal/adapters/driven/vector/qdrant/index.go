// Package qdrant implements the vector index gateway on a Qdrant server
// over gRPC. Each docsync collection maps to one Qdrant collection named
// with a configurable prefix; point payloads carry the chunk metadata.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/custodia-labs/docsync/internal/core/domain"
	"github.com/custodia-labs/docsync/internal/core/ports/driven"
	"github.com/custodia-labs/docsync/internal/logger"
)

const (
	// upsertBatchSize bounds the number of points per Upsert request.
	upsertBatchSize = 256

	// scrollPageSize bounds the number of ids fetched per Scroll request.
	scrollPageSize = 512
)

var _ driven.VectorIndexGateway = (*Index)(nil)

// client is the subset of *qdrant.Client the gateway uses.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// Index is a VectorIndexGateway backed by Qdrant.
type Index struct {
	client     client
	dimensions int
	prefix     string
	log        *zap.SugaredLogger

	mu    sync.Mutex
	known map[string]bool
}

// New connects to Qdrant. The gRPC connection is established lazily, so
// an unreachable server surfaces on the first call as ErrIndexUnavailable.
func New(cfg Config) (*Index, error) {
	ep, err := cfg.endpoint()
	if err != nil {
		return nil, err
	}

	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   ep.host,
		Port:   ep.port,
		APIKey: cfg.APIKey,
		UseTLS: ep.useTLS,

		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, opErr("connect", "", OperationErrorTransportFailed, fmt.Sprintf("%s:%d", ep.host, ep.port), err)
	}

	idx := newIndex(c, cfg)
	idx.log.Infow("qdrant vector index selected",
		"host", ep.host,
		"port", ep.port,
		"tls", ep.useTLS,
		"dimensions", cfg.Dimensions,
	)
	return idx, nil
}

func newIndex(c client, cfg Config) *Index {
	return &Index{
		client:     c,
		dimensions: cfg.Dimensions,
		prefix:     cfg.prefix(),
		log:        logger.Named("qdrant"),
		known:      make(map[string]bool),
	}
}

// collectionName returns the Qdrant collection for a docsync collection ID.
func (x *Index) collectionName(collectionID string) string {
	return x.prefix + collectionID
}

// EnsureCollection creates the collection with cosine distance and a
// keyword index on the document id if it does not exist.
func (x *Index) EnsureCollection(ctx context.Context, collectionID string) error {
	const op = "ensure_collection"
	name := x.collectionName(collectionID)

	x.mu.Lock()
	known := x.known[name]
	x.mu.Unlock()
	if known {
		return nil
	}

	exists, err := x.client.CollectionExists(ctx, name)
	if err != nil {
		return classify(op, name, err)
	}
	if !exists {
		err := x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(x.dimensions),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil && !isAlreadyExists(err) {
			return classify(op, name, err)
		}
		if err == nil {
			_, err := x.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: name,
				FieldName:      domain.PayloadDocumentID,
				FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			})
			if err != nil {
				// Filters still work without the index, only slower.
				x.log.Warnw("creating payload index failed", "collection", name, "error", err)
			}
			x.log.Debugw("created collection", "collection", name, "dimensions", x.dimensions)
		}
	}

	x.mu.Lock()
	x.known[name] = true
	x.mu.Unlock()
	return nil
}

// UpsertCollection writes points in batches, waiting for each to be applied.
func (x *Index) UpsertCollection(ctx context.Context, collectionID string, points []domain.Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	name := x.collectionName(collectionID)

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for i := range points {
		p := &points[i]
		if len(p.Vector) != x.dimensions {
			return opErr(op, name, OperationErrorValidation,
				fmt.Sprintf("point %s dimension mismatch: expected=%d got=%d", p.ID, x.dimensions, len(p.Vector)), nil)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: encodePayload(p.Payload),
		})
	}

	if err := x.EnsureCollection(ctx, collectionID); err != nil {
		return err
	}

	wait := true
	for start := 0; start < len(structs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(structs))
		_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         structs[start:end],
		})
		if err != nil {
			if isNotFound(err) {
				x.forget(name)
			}
			return classify(op, name, err)
		}
	}
	return nil
}

// Search runs a nearest-neighbour query. A missing collection has no results.
func (x *Index) Search(ctx context.Context, collectionID string, req domain.SearchRequest) ([]domain.SearchResult, error) {
	const op = "search"
	name := x.collectionName(collectionID)
	if len(req.Vector) != x.dimensions {
		return nil, opErr(op, name, OperationErrorValidation,
			fmt.Sprintf("query vector dimension mismatch: expected=%d got=%d", x.dimensions, len(req.Vector)), nil)
	}

	limit := uint64(req.EffectiveLimit())
	scored, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(req.Vector...),
		Filter:         translateFilter(req.Filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		if isNotFound(err) {
			return []domain.SearchResult{}, nil
		}
		return nil, classify(op, name, err)
	}

	results := make([]domain.SearchResult, 0, len(scored))
	for _, sp := range scored {
		payload := decodePayload(sp.GetPayload())
		results = append(results, domain.SearchResult{
			PointID:      sp.GetId().GetUuid(),
			Content:      payload.Content,
			Score:        float64(sp.GetScore()),
			DocumentID:   payload.DocumentID,
			CollectionID: payload.CollectionID,
			ChunkIndex:   payload.ChunkIndex,
			TitleChain:   payload.TitleChain,
		})
	}
	return results, nil
}

// DeletePointsByDoc removes every point whose payload names the document.
func (x *Index) DeletePointsByDoc(ctx context.Context, collectionID, documentID string) error {
	name := x.collectionName(collectionID)
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch(domain.PayloadDocumentID, documentID)},
	}
	return x.delete(ctx, "delete_by_doc", name, qdrant.NewPointsSelectorFilter(filter))
}

// DeletePointsByCollection drops the Qdrant collection.
func (x *Index) DeletePointsByCollection(ctx context.Context, collectionID string) error {
	name := x.collectionName(collectionID)
	x.forget(name)
	if err := x.client.DeleteCollection(ctx, name); err != nil && !isNotFound(err) {
		return classify("delete_collection", name, err)
	}
	return nil
}

// DeletePoints removes points by ID.
func (x *Index) DeletePoints(ctx context.Context, collectionID string, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, len(pointIDs))
	for i, id := range pointIDs {
		ids[i] = qdrant.NewID(id)
	}
	return x.delete(ctx, "delete_points", x.collectionName(collectionID), qdrant.NewPointsSelector(ids...))
}

func (x *Index) delete(ctx context.Context, op, name string, selector *qdrant.PointsSelector) error {
	wait := true
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Wait:           &wait,
		Points:         selector,
	})
	if err != nil && !isNotFound(err) {
		return classify(op, name, err)
	}
	return nil
}

// GetAllPointIDsInCollection pages through the collection with Scroll.
// Qdrant offsets are inclusive, so each page asks for one extra point and
// uses it as the next offset.
func (x *Index) GetAllPointIDsInCollection(ctx context.Context, collectionID string) ([]string, error) {
	const op = "list_points"
	name := x.collectionName(collectionID)

	var ids []string
	var offset *qdrant.PointId
	pageSize := uint32(scrollPageSize + 1)
	for {
		page, err := x.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Offset:         offset,
			Limit:          &pageSize,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			if isNotFound(err) {
				return []string{}, nil
			}
			return nil, classify(op, name, err)
		}

		for i, p := range page {
			if i == scrollPageSize {
				break
			}
			ids = append(ids, p.GetId().GetUuid())
		}
		if len(page) <= scrollPageSize {
			break
		}
		offset = page[scrollPageSize].GetId()
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Close closes the gRPC connection.
func (x *Index) Close() error {
	return x.client.Close()
}

func (x *Index) forget(name string) {
	x.mu.Lock()
	delete(x.known, name)
	x.mu.Unlock()
}
