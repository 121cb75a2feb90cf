package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/uidex/uidex/internal/component"
	dexerrors "github.com/uidex/uidex/internal/errors"
)

// DefaultQdrantAddr is the default Qdrant gRPC endpoint.
const DefaultQdrantAddr = "localhost:6334"

// scrollPageSize bounds one Stats scroll page.
const scrollPageSize = 256

// QdrantStore implements VectorStore against a Qdrant collection over
// gRPC. Records travel as JSON in the point payload; the filterable
// fields are mirrored as separate payload keys so Qdrant can apply
// filters server-side.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string
	dims        int
	logger      *slog.Logger
}

// QdrantConfig configures the Qdrant store.
type QdrantConfig struct {
	Addr       string
	Collection string
	Dimensions int
}

// NewQdrantStore connects to Qdrant and ensures the collection exists
// with a cosine-distance vector index of the configured dimension.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, logger *slog.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultQdrantAddr
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.Dimensions <= 0 {
		return nil, dexerrors.ConfigError("vector store dimensions not configured", nil)
	}

	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "connect to qdrant", err).
			WithDetail("addr", cfg.Addr).
			WithSuggestion("Check that Qdrant is running and UIDEX_QDRANT_ADDR points at its gRPC port.")
	}

	s := &QdrantStore{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		dims:        cfg.Dimensions,
		logger:      logger,
	}

	if err := s.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// ensureCollection creates the collection when it does not exist yet.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	_, err := s.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: s.collection,
	})
	if err == nil {
		return nil
	}

	s.logger.Info("creating qdrant collection",
		slog.String("collection", s.collection),
		slog.Int("dimensions", s.dims))

	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "create qdrant collection", err).
			WithDetail("collection", s.collection)
	}
	return nil
}

// pointID converts a record ID (hex SHA-256) into the UUID form Qdrant
// accepts, deterministically, so re-upserts hit the same point.
func pointID(recordID string) string {
	if len(recordID) < 32 {
		return recordID
	}
	h := recordID[:32]
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}

// payloadFor builds the point payload: the full record as JSON plus
// the filterable fields as keyword values.
func payloadFor(rec *component.Record) (map[string]*qdrant.Value, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeInternal, "marshal record payload", err)
	}

	tagValues := make([]*qdrant.Value, len(rec.Tags))
	for i, tag := range rec.Tags {
		tagValues[i] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: tag}}
	}

	return map[string]*qdrant.Value{
		"record":      {Kind: &qdrant.Value_StringValue{StringValue: string(raw)}},
		"name":        {Kind: &qdrant.Value_StringValue{StringValue: rec.Name}},
		"library":     {Kind: &qdrant.Value_StringValue{StringValue: rec.Library}},
		"source_kind": {Kind: &qdrant.Value_StringValue{StringValue: string(rec.SourceKind)}},
		"category":    {Kind: &qdrant.Value_StringValue{StringValue: rec.Category}},
		"tags":        {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: tagValues}}},
	}, nil
}

// recordFromPayload restores the record from a point payload.
func recordFromPayload(payload map[string]*qdrant.Value) (*component.Record, error) {
	raw := payload["record"].GetStringValue()
	if raw == "" {
		return nil, dexerrors.New(dexerrors.ErrCodeInternal, "point payload missing record", nil)
	}

	var rec component.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeInternal, "unmarshal record payload", err)
	}
	return &rec, nil
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// qdrantFilter converts a Filter into Qdrant must-conditions.
// Returns nil for the zero filter.
func qdrantFilter(f Filter) *qdrant.Filter {
	if f.IsZero() {
		return nil
	}

	var must []*qdrant.Condition
	if f.Library != "" {
		must = append(must, keywordCondition("library", f.Library))
	}
	if f.SourceKind != "" {
		must = append(must, keywordCondition("source_kind", string(f.SourceKind)))
	}
	if f.Category != "" {
		must = append(must, keywordCondition("category", f.Category))
	}
	if f.Tag != "" {
		must = append(must, keywordCondition("tags", f.Tag))
	}
	return &qdrant.Filter{Must: must}
}

func enablePayload() *qdrant.WithPayloadSelector {
	return &qdrant.WithPayloadSelector{
		SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
	}
}

// Upsert inserts or replaces the record keyed by its ID.
func (s *QdrantStore) Upsert(ctx context.Context, rec *component.Record, vector []float32) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if len(vector) != s.dims {
		return dexerrors.New(dexerrors.ErrCodeDimensionMismatch, "vector dimension mismatch", nil).
			WithDetail("expected", strconv.Itoa(s.dims)).
			WithDetail("got", strconv.Itoa(len(vector)))
	}

	payload, err := payloadFor(rec)
	if err != nil {
		return err
	}

	_, err = s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           proto.Bool(true),
		Points: []*qdrant.PointStruct{{
			Id:      &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID(rec.ID)}},
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: vector}}},
			Payload: payload,
		}},
	})
	if err != nil {
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "upsert point", err).
			WithDetail("record_id", rec.ID)
	}
	return nil
}

// Get returns the stored record by ID.
func (s *QdrantStore) Get(ctx context.Context, id string) (*component.Record, bool, error) {
	resp, err := s.points.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids: []*qdrant.PointId{
			{PointIdOptions: &qdrant.PointId_Uuid{Uuid: pointID(id)}},
		},
		WithPayload: enablePayload(),
	})
	if err != nil {
		return nil, false, dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "get point", err).
			WithDetail("record_id", id)
	}
	if len(resp.GetResult()) == 0 {
		return nil, false, nil
	}

	rec, err := recordFromPayload(resp.GetResult()[0].GetPayload())
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Search returns up to limit hits nearest to the query vector.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]*Hit, error) {
	if len(vector) != s.dims {
		return nil, dexerrors.New(dexerrors.ErrCodeDimensionMismatch, "query dimension mismatch", nil).
			WithDetail("expected", strconv.Itoa(s.dims)).
			WithDetail("got", strconv.Itoa(len(vector)))
	}
	if limit <= 0 {
		return []*Hit{}, nil
	}

	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         qdrantFilter(filter),
		WithPayload:    enablePayload(),
	})
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "search points", err)
	}

	hits := make([]*Hit, 0, len(resp.GetResult()))
	for _, scored := range resp.GetResult() {
		rec, err := recordFromPayload(scored.GetPayload())
		if err != nil {
			s.logger.Warn("skipping point with bad payload",
				slog.String("error", err.Error()))
			continue
		}
		hits = append(hits, &Hit{Record: rec, Score: scored.GetScore()})
	}
	return hits, nil
}

// Count returns the number of indexed records.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          proto.Bool(true),
	})
	if err != nil {
		return 0, dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "count points", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// Stats scrolls the whole collection and aggregates per-library,
// per-kind, and per-category counts.
func (s *QdrantStore) Stats(ctx context.Context) (*CollectionStats, error) {
	stats := &CollectionStats{
		Collection:  s.collection,
		Dimensions:  s.dims,
		Libraries:   make(map[string]int),
		SourceKinds: make(map[string]int),
		Categories:  make(map[string]int),
	}

	var offset *qdrant.PointId
	for {
		resp, err := s.points.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Limit:          proto.Uint32(scrollPageSize),
			Offset:         offset,
			WithPayload:    enablePayload(),
		})
		if err != nil {
			return nil, dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "scroll points", err)
		}

		for _, point := range resp.GetResult() {
			payload := point.GetPayload()
			stats.TotalComponents++
			stats.Libraries[payload["library"].GetStringValue()]++
			stats.SourceKinds[payload["source_kind"].GetStringValue()]++
			if cat := payload["category"].GetStringValue(); cat != "" {
				stats.Categories[cat]++
			}
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	return stats, nil
}

// Clear deletes every point in the collection.
func (s *QdrantStore) Clear(ctx context.Context) error {
	_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           proto.Bool(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: &qdrant.Filter{}},
		},
	})
	if err != nil {
		return dexerrors.New(dexerrors.ErrCodeStoreUnavailable, "clear collection", err)
	}
	return nil
}

// Close tears down the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

var _ VectorStore = (*QdrantStore)(nil)
