package index

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"webrecall/internal/model"
)

const scrollPageSize = 256

// Qdrant stores one point per chunk, keyed by the deterministic chunk
// id, with (owner_id, url, ordinal) payload under cosine distance.
type Qdrant struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

func NewQdrant(conn *grpc.ClientConn, collection string) *Qdrant {
	return &Qdrant{
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}
}

// EnsureCollection creates the chunk collection if it does not exist.
func (q *Qdrant) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections failed: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s failed: %w", q.collection, err)
	}
	return nil
}

// PutBatch upserts the chunk set for one page and removes whatever
// previous chunks of that page are absent from the new set. The stale
// id set is read immediately before the upsert so a concurrent
// re-ingest can never leave a mixed old/new chunk set behind.
func (q *Qdrant) PutBatch(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ownerID, url := chunks[0].OwnerID, chunks[0].URL

	previous, err := q.pointIDs(ctx, ownerID, url)
	if err != nil {
		return err
	}

	fresh := make(map[string]bool, len(chunks))
	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		fresh[c.ID] = true
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: c.ID}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding}},
			},
			Payload: map[string]*pb.Value{
				"owner_id": {Kind: &pb.Value_StringValue{StringValue: ownerKey(c.OwnerID)}},
				"url":      {Kind: &pb.Value_StringValue{StringValue: c.URL}},
				"ordinal":  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Ordinal)}},
				"text":     {Kind: &pb.Value_StringValue{StringValue: c.Text}},
			},
		}
	}

	wait := true
	if _, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert %d chunks failed: %w", len(points), err)
	}

	var stale []*pb.PointId
	for _, id := range previous {
		if !fresh[id] {
			stale = append(stale, &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}})
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if _, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: stale},
			},
		},
	}); err != nil {
		return fmt.Errorf("delete %d stale chunks failed: %w", len(stale), err)
	}
	return nil
}

// Query runs nearest-neighbor search over the chunks of exactly one
// (owner, url) pair. An empty result is not an error.
func (q *Qdrant) Query(ctx context.Context, ownerID uint, url string, vector []float32, topK int) ([]model.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 3
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         ownerURLFilter(ownerID, url),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]model.RetrievedChunk, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		results = append(results, model.RetrievedChunk{
			Text:  r.GetPayload()["text"].GetStringValue(),
			Score: r.GetScore(),
		})
	}
	return results, nil
}

// DeleteByURL removes every chunk of (ownerID, url). Deleting a page
// that has no chunks is a no-op.
func (q *Qdrant) DeleteByURL(ctx context.Context, ownerID uint, url string) error {
	wait := true
	_, err := q.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: ownerURLFilter(ownerID, url),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete chunks for %s failed: %w", url, err)
	}
	return nil
}

func (q *Qdrant) pointIDs(ctx context.Context, ownerID uint, url string) ([]string, error) {
	var (
		ids    []string
		offset *pb.PointId
		limit  = uint32(scrollPageSize)
	)
	for {
		resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: q.collection,
			Filter:         ownerURLFilter(ownerID, url),
			Limit:          &limit,
			Offset:         offset,
		})
		if err != nil {
			return nil, fmt.Errorf("scroll chunk ids failed: %w", err)
		}
		for _, p := range resp.GetResult() {
			ids = append(ids, p.GetId().GetUuid())
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return ids, nil
		}
	}
}

func ownerURLFilter(ownerID uint, url string) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{
			fieldMatch("owner_id", ownerKey(ownerID)),
			fieldMatch("url", url),
		},
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}
