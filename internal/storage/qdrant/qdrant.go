// Package qdrant implements the vector store on a Qdrant server over gRPC.
//
// Every project gets its own Qdrant collection with cosine distance. Collection
// metadata (project root, embedding function, owner) is kept as payload in a
// small registry collection, so listing and verification need no extra store.
package qdrant

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dshills/vectorcode/internal/embedder"
	"github.com/dshills/vectorcode/internal/storage"
	"github.com/dshills/vectorcode/pkg/types"
)

const (
	// RegistryCollection holds one point per collection created by vectorcode
	RegistryCollection = "vectorcode_registry"

	// DefaultPort is the Qdrant gRPC port
	DefaultPort = 6334

	upsertBatchSize = 256
	scrollPageSize  = 256
)

// Payload keys
const (
	keyPath       = "path"
	keyChunkIndex = "chunk_index"
	keyDocument   = "document"
	keyFileHash   = "file_hash"

	keyName              = "name"
	keyProjectRoot       = "project_root"
	keyEmbeddingFunction = "embedding_function"
	keyDimension         = "dimension"
	keyUsername          = "username"
	keyHostname          = "hostname"
	keyCreatedBy         = "created_by"
	keyCreatedAt         = "created_at"
)

var registryNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dshills/vectorcode/registry"))

// Config holds connection settings
type Config struct {
	Host   string
	Port   int
	APIKey string
}

// Backend implements storage.Backend using Qdrant
type Backend struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	target      string
}

// New connects to a Qdrant server and creates the registry collection if it is missing
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	b := newBackend(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), "qdrant://"+addr)
	b.conn = conn
	if err := b.ensureRegistry(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

func newBackend(points pb.PointsClient, collections pb.CollectionsClient, target string) *Backend {
	return &Backend{points: points, collections: collections, target: target}
}

func apiKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (b *Backend) Target() string {
	return b.target
}

func (b *Backend) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

func (b *Backend) ensureRegistry(ctx context.Context) error {
	exists, err := b.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: RegistryCollection})
	if err != nil {
		return fmt.Errorf("qdrant registry: %w", err)
	}
	if exists.GetResult().GetExists() {
		return nil
	}
	return b.createCollection(ctx, RegistryCollection, 1)
}

func (b *Backend) createCollection(ctx context.Context, name string, dimension int) error {
	_, err := b.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: name,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: uint64(dimension), Distance: pb.Distance_Cosine},
		}},
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (b *Backend) GetCollection(ctx context.Context, spec storage.CollectionSpec) (storage.Collection, error) {
	if spec.Embedder == nil {
		return nil, storage.ErrEmbedderRequired
	}

	info, err := b.lookup(ctx, spec.Name())
	if err != nil {
		if errors.Is(err, types.ErrNoCollection) {
			return nil, fmt.Errorf("%w for %s", types.ErrNoCollection, spec.ProjectRoot)
		}
		return nil, err
	}

	if !spec.SkipVerify {
		if err := info.Verify(spec.Embedder); err != nil {
			return nil, err
		}
	}

	return &collection{points: b.points, info: info, embedder: spec.Embedder}, nil
}

func (b *Backend) GetOrCreateCollection(ctx context.Context, spec storage.CollectionSpec) (storage.Collection, error) {
	if spec.Embedder == nil {
		return nil, storage.ErrEmbedderRequired
	}

	_, err := b.lookup(ctx, spec.Name())
	if err == nil {
		return b.GetCollection(ctx, spec)
	}
	if !errors.Is(err, types.ErrNoCollection) {
		return nil, err
	}

	info := storage.CollectionInfo{
		Name:              spec.Name(),
		ProjectRoot:       spec.ProjectRoot,
		EmbeddingFunction: embedder.Name(spec.Embedder),
		Dimension:         spec.Embedder.Dimension(),
		Username:          spec.Username,
		Hostname:          spec.Hostname,
		CreatedBy:         storage.CreatedBy,
		CreatedAt:         time.Now().UTC(),
	}
	if err := b.createCollection(ctx, info.Name, info.Dimension); err != nil {
		return nil, err
	}

	_, err = b.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: RegistryCollection,
		Wait:           ptr(true),
		Points: []*pb.PointStruct{{
			Id:      registryID(info.Name),
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: []float32{1}}}},
			Payload: infoPayload(info),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("register collection %s: %w", info.Name, err)
	}

	return b.GetCollection(ctx, spec)
}

func (b *Backend) ListCollections(ctx context.Context) ([]storage.CollectionInfo, error) {
	var infos []storage.CollectionInfo
	var offset *pb.PointId
	for {
		resp, err := b.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: RegistryCollection,
			Offset:         offset,
			Limit:          ptr(uint32(scrollPageSize)),
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}

		for _, pt := range resp.GetResult() {
			info := payloadInfo(pt.GetPayload())
			if info.CreatedBy != storage.CreatedBy {
				continue
			}
			count, err := b.points.Count(ctx, &pb.CountPoints{CollectionName: info.Name, Exact: ptr(true)})
			if err != nil {
				return nil, mapError(err)
			}
			info.Size = int(count.GetResult().GetCount())
			infos = append(infos, info)
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	return infos, nil
}

func (b *Backend) DropCollection(ctx context.Context, name string) error {
	if _, err := b.lookup(ctx, name); err != nil {
		return err
	}

	if _, err := b.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: name}); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}

	_, err := b.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: RegistryCollection,
		Wait:           ptr(true),
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{Ids: []*pb.PointId{registryID(name)}},
		}},
	})
	if err != nil {
		return fmt.Errorf("unregister collection %s: %w", name, err)
	}
	return nil
}

// lookup reads a collection's registry entry
func (b *Backend) lookup(ctx context.Context, name string) (storage.CollectionInfo, error) {
	resp, err := b.points.Get(ctx, &pb.GetPoints{
		CollectionName: RegistryCollection,
		Ids:            []*pb.PointId{registryID(name)},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return storage.CollectionInfo{}, fmt.Errorf("lookup collection %s: %w", name, err)
	}
	if len(resp.GetResult()) == 0 {
		return storage.CollectionInfo{}, fmt.Errorf("%w: %s", types.ErrNoCollection, name)
	}
	return payloadInfo(resp.GetResult()[0].GetPayload()), nil
}

// collection is one project's Qdrant collection
type collection struct {
	points   pb.PointsClient
	info     storage.CollectionInfo
	embedder embedder.Embedder
}

func (c *collection) Info() storage.CollectionInfo {
	return c.info
}

func (c *collection) Count(ctx context.Context) (int, error) {
	resp, err := c.points.Count(ctx, &pb.CountPoints{CollectionName: c.info.Name, Exact: ptr(true)})
	if err != nil {
		return 0, mapError(err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (c *collection) Query(ctx context.Context, req storage.QueryRequest) ([][]types.Candidate, error) {
	if len(req.Texts) == 0 {
		return nil, nil
	}

	limit := req.NResults
	if limit <= 0 {
		n, err := c.Count(ctx)
		if err != nil {
			return nil, err
		}
		limit = n
	}
	if limit == 0 {
		return make([][]types.Candidate, len(req.Texts)), nil
	}

	vectors, err := embedder.EmbedTexts(ctx, c.embedder, req.Texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	fields := []string{keyPath}
	if req.Include.Documents {
		fields = append(fields, keyDocument)
	}
	selector := &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Include{
		Include: &pb.PayloadIncludeSelector{Fields: fields},
	}}
	filter := excludeFilter(req.Exclude)

	searches := make([]*pb.SearchPoints, len(vectors))
	for i, v := range vectors {
		searches[i] = &pb.SearchPoints{
			CollectionName: c.info.Name,
			Vector:         v,
			Filter:         filter,
			Limit:          uint64(limit),
			WithPayload:    selector,
		}
	}

	resp, err := c.points.SearchBatch(ctx, &pb.SearchBatchPoints{
		CollectionName: c.info.Name,
		SearchPoints:   searches,
	})
	if err != nil {
		return nil, mapError(err)
	}

	results := make([][]types.Candidate, len(vectors))
	for i, batch := range resp.GetResult() {
		if i >= len(results) {
			break
		}
		results[i] = toCandidates(batch.GetResult(), req.Include.Documents)
	}
	return results, nil
}

func (c *collection) Upsert(ctx context.Context, docs []storage.Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vectors, err := embedder.EmbedTexts(ctx, c.embedder, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}

	for start := 0; start < len(docs); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(docs))
		points := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, documentPoint(docs[i], vectors[i]))
		}

		_, err := c.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: c.info.Name,
			Wait:           ptr(true),
			Points:         points,
		})
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (c *collection) DeleteByPath(ctx context.Context, paths []string) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}
	filter := &pb.Filter{Must: []*pb.Condition{pathCondition(paths)}}

	count, err := c.points.Count(ctx, &pb.CountPoints{CollectionName: c.info.Name, Filter: filter, Exact: ptr(true)})
	if err != nil {
		return 0, mapError(err)
	}

	_, err = c.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: c.info.Name,
		Wait:           ptr(true),
		Points:         &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{Filter: filter}},
	})
	if err != nil {
		return 0, mapError(err)
	}
	return int(count.GetResult().GetCount()), nil
}

func (c *collection) ListPaths(ctx context.Context) (map[string][32]byte, error) {
	paths := make(map[string][32]byte)
	var offset *pb.PointId
	for {
		resp, err := c.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: c.info.Name,
			Offset:         offset,
			Limit:          ptr(uint32(scrollPageSize)),
			WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{keyPath, keyFileHash}},
			}},
		})
		if err != nil {
			return nil, mapError(err)
		}

		for _, pt := range resp.GetResult() {
			payload := pt.GetPayload()
			var hash [32]byte
			if raw, err := hex.DecodeString(payload[keyFileHash].GetStringValue()); err == nil {
				copy(hash[:], raw)
			}
			paths[payload[keyPath].GetStringValue()] = hash
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}
	return paths, nil
}

// excludeFilter drops points whose path is any of the excluded paths
func excludeFilter(exclude []string) *pb.Filter {
	if len(exclude) == 0 {
		return nil
	}
	return &pb.Filter{MustNot: []*pb.Condition{pathCondition(exclude)}}
}

func pathCondition(paths []string) *pb.Condition {
	return &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
		Key: keyPath,
		Match: &pb.Match{MatchValue: &pb.Match_Keywords{
			Keywords: &pb.RepeatedStrings{Strings: paths},
		}},
	}}}
}

// toCandidates converts scored points; Qdrant reports cosine similarity, candidates carry distance
func toCandidates(points []*pb.ScoredPoint, withDocuments bool) []types.Candidate {
	candidates := make([]types.Candidate, len(points))
	for i, pt := range points {
		payload := pt.GetPayload()
		candidates[i] = types.Candidate{
			Path:     payload[keyPath].GetStringValue(),
			Distance: 1 - float64(pt.GetScore()),
		}
		if withDocuments {
			if v, ok := payload[keyDocument]; ok {
				doc := v.GetStringValue()
				candidates[i].Document = &doc
			}
		}
	}
	return candidates
}

func documentPoint(d storage.Document, vector []float32) *pb.PointStruct {
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: storage.DocumentID(d.Path, d.ChunkIndex).String()}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
		Payload: map[string]*pb.Value{
			keyPath:       stringValue(d.Path),
			keyChunkIndex: intValue(int64(d.ChunkIndex)),
			keyDocument:   stringValue(d.Text),
			keyFileHash:   stringValue(hex.EncodeToString(d.FileHash[:])),
		},
	}
}

func registryID(name string) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewSHA1(registryNamespace, []byte(name)).String()}}
}

func infoPayload(info storage.CollectionInfo) map[string]*pb.Value {
	return map[string]*pb.Value{
		keyName:              stringValue(info.Name),
		keyProjectRoot:       stringValue(info.ProjectRoot),
		keyEmbeddingFunction: stringValue(info.EmbeddingFunction),
		keyDimension:         intValue(int64(info.Dimension)),
		keyUsername:          stringValue(info.Username),
		keyHostname:          stringValue(info.Hostname),
		keyCreatedBy:         stringValue(info.CreatedBy),
		keyCreatedAt:         stringValue(info.CreatedAt.Format(time.RFC3339)),
	}
}

func payloadInfo(payload map[string]*pb.Value) storage.CollectionInfo {
	info := storage.CollectionInfo{
		Name:              payload[keyName].GetStringValue(),
		ProjectRoot:       payload[keyProjectRoot].GetStringValue(),
		EmbeddingFunction: payload[keyEmbeddingFunction].GetStringValue(),
		Dimension:         int(payload[keyDimension].GetIntegerValue()),
		Username:          payload[keyUsername].GetStringValue(),
		Hostname:          payload[keyHostname].GetStringValue(),
		CreatedBy:         payload[keyCreatedBy].GetStringValue(),
	}
	if t, err := time.Parse(time.RFC3339, payload[keyCreatedAt].GetStringValue()); err == nil {
		info.CreatedAt = t
	}
	return info
}

// mapError translates gRPC status codes into the store error taxonomy
func mapError(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", types.ErrNoCollection, err)
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", types.ErrSchemaMismatch, err)
	default:
		return fmt.Errorf("qdrant: %w", err)
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func intValue(i int64) *pb.Value {
	return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: i}}
}

func ptr[T any](v T) *T {
	return &v
}

var _ storage.Backend = (*Backend)(nil)
