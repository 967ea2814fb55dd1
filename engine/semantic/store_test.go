package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/CrisisMapAI/crisismap-mvp/engine/domain"
)

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertErr  error
	deleteErr  error
	searchReq  *pb.SearchPoints
	searchResp *pb.SearchResponse
	searchErr  error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}
func (m *mockPoints) Delete(_ context.Context, _ *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	return &pb.PointsOperationResponse{}, m.deleteErr
}
func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searchReq = in
	return m.searchResp, m.searchErr
}

type mockCollections struct {
	listResp  *pb.ListCollectionsResponse
	listErr   error
	created   *pb.CreateCollection
	createErr error
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	return m.listResp, m.listErr
}
func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	return &pb.CollectionOperationResponse{Result: true}, m.createErr
}
func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	return &pb.CollectionOperationResponse{Result: true}, m.deleteErr
}

func TestEnsureCollectionAlreadyExists(t *testing.T) {
	cols := &mockCollections{
		listResp: &pb.ListCollectionsResponse{
			Collections: []*pb.CollectionDescription{{Name: "crisis_events"}},
		},
	}
	vs := NewWithClients(&mockPoints{}, cols, "crisis_events")
	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.created != nil {
		t.Fatal("should not create existing collection")
	}
}

func TestEnsureCollectionCreates(t *testing.T) {
	cols := &mockCollections{listResp: &pb.ListCollectionsResponse{}}
	vs := NewWithClients(&mockPoints{}, cols, "crisis_events")
	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cols.created == nil {
		t.Fatal("expected Create call")
	}
	params := cols.created.VectorsConfig.GetParams()
	if params.Size != 768 || params.Distance != pb.Distance_Cosine {
		t.Errorf("params = %+v", params)
	}
}

func TestEnsureCollectionListError(t *testing.T) {
	cols := &mockCollections{listErr: errors.New("rpc fail")}
	vs := NewWithClients(&mockPoints{}, cols, "crisis_events")
	if err := vs.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsertEmpty(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "crisis_events")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pts.upsertReq != nil {
		t.Fatal("empty upsert should not call Qdrant")
	}
}

func TestUpsertMapsEvent(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "crisis_events")

	err := vs.Upsert(context.Background(), []VectorRecord{{
		ID:        "11111111-1111-1111-1111-111111111111",
		Embedding: []float32{0.1, 0.2},
		Event: domain.CrisisEvent{
			ID:       "ev-1",
			Title:    "Turkey Earthquake",
			Summary:  "A 7.8 magnitude earthquake.",
			Country:  "Turkey",
			Category: domain.CategoryEarthquake,
			Extra:    map[string]string{"magnitude": "7.8"},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}

	if len(pts.upsertReq.Points) != 1 {
		t.Fatalf("points = %d", len(pts.upsertReq.Points))
	}
	payload := pts.upsertReq.Points[0].Payload
	if payload["title"].GetStringValue() != "Turkey Earthquake" {
		t.Errorf("title payload = %v", payload["title"])
	}
	if payload["extra_magnitude"].GetStringValue() != "7.8" {
		t.Errorf("extra payload = %v", payload["extra_magnitude"])
	}
	if _, ok := payload["text"]; ok {
		t.Error("empty fields should be omitted from payload")
	}
}

func TestSearchDecodesEvents(t *testing.T) {
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "p1"}},
					Score: 0.95,
					Payload: map[string]*pb.Value{
						"event_id":   {Kind: &pb.Value_StringValue{StringValue: "ev-1"}},
						"title":      {Kind: &pb.Value_StringValue{StringValue: "Nepal Earthquake"}},
						"summary":    {Kind: &pb.Value_StringValue{StringValue: "Thousands killed."}},
						"country":    {Kind: &pb.Value_StringValue{StringValue: "Nepal"}},
						"category":   {Kind: &pb.Value_StringValue{StringValue: "earthquake"}},
						"extra_mag":  {Kind: &pb.Value_StringValue{StringValue: "7.8"}},
					},
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "crisis_events")

	results, err := vs.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	r := results[0]
	if r.ID != "p1" || r.Score != 0.95 {
		t.Errorf("id/score = %s/%f", r.ID, r.Score)
	}
	if r.Event.Title != "Nepal Earthquake" || r.Event.Category != domain.CategoryEarthquake {
		t.Errorf("event = %+v", r.Event)
	}
	if r.Event.Extra["mag"] != "7.8" {
		t.Errorf("extra = %v", r.Event.Extra)
	}
}

func TestSearchFilteredBuildsConditions(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "crisis_events")

	_, err := vs.SearchFiltered(context.Background(), []float32{1}, 3, map[string]string{"country": "Japan"})
	if err != nil {
		t.Fatal(err)
	}
	conds := pts.searchReq.Filter.GetMust()
	if len(conds) != 1 {
		t.Fatalf("conditions = %d", len(conds))
	}
	fc := conds[0].GetField()
	if fc.Key != "country" || fc.Match.GetKeyword() != "Japan" {
		t.Errorf("condition = %+v", fc)
	}
}

func TestSearchError(t *testing.T) {
	pts := &mockPoints{searchErr: errors.New("fail")}
	vs := NewWithClients(pts, &mockCollections{}, "crisis_events")
	if _, err := vs.Search(context.Background(), []float32{1}, 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := domain.CrisisEvent{
		ID:         "ev-9",
		Title:      "Kerala Floods",
		Summary:    "Severe flooding across Kerala.",
		Text:       "Monsoon rains caused the worst flooding in a century.",
		Location:   "Kerala",
		Country:    "India",
		Category:   domain.CategoryFlood,
		Date:       "2018-08-16",
		Casualties: "483",
		Extra:      map[string]string{"rainfall_mm": "2346"},
	}
	out := payloadToEvent(eventToPayload(in))
	if out.Title != in.Title || out.Text != in.Text || out.Casualties != in.Casualties {
		t.Errorf("round trip lost fields: %+v", out)
	}
	if out.Extra["rainfall_mm"] != "2346" {
		t.Errorf("extra round trip: %v", out.Extra)
	}
}
