package fleetrpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
	"github.com/signalsfoundry/schoolbus-tracker/model"
)

func seededStore(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	store := kb.NewKnowledgeBase()
	if err := kb.Seed(store); err != nil {
		t.Fatalf("Seed error: %v", err)
	}
	return store
}

func dialFleet(t *testing.T, store *kb.KnowledgeBase, opts ...grpc.ServerOption) (*FleetServiceClient, *grpc.ClientConn) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(opts...)
	Register(srv, NewServer(store, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewFleetServiceClient(conn), conn
}

func TestGetFleetFiltersByQuery(t *testing.T) {
	client, _ := dialFleet(t, seededStore(t))
	ctx := context.Background()

	all, err := client.GetFleet(ctx, wrapperspb.String(""))
	if err != nil {
		t.Fatalf("GetFleet error: %v", err)
	}
	if n := all.GetFields()["count"].GetNumberValue(); n != 4 {
		t.Fatalf("count = %v, want 4", n)
	}

	north, err := client.GetFleet(ctx, wrapperspb.String("north"))
	if err != nil {
		t.Fatalf("GetFleet(north) error: %v", err)
	}
	buses := north.GetFields()["buses"].GetListValue().GetValues()
	if len(buses) != 1 {
		t.Fatalf("got %d buses for 'north', want 1", len(buses))
	}
	if got := buses[0].GetStructValue().GetFields()["number"].GetStringValue(); got != "Bus 101" {
		t.Fatalf("number = %q, want Bus 101", got)
	}
}

func TestGetBusRoundTrip(t *testing.T) {
	store := seededStore(t)
	client, _ := dialFleet(t, store)

	resp, err := client.GetBus(context.Background(), wrapperspb.String("1"))
	if err != nil {
		t.Fatalf("GetBus error: %v", err)
	}
	want, _ := store.GetBus("1")
	if got := BusFromStruct(resp); got != want {
		t.Fatalf("GetBus = %+v, want %+v", got, want)
	}
}

func TestGetBusErrors(t *testing.T) {
	client, _ := dialFleet(t, seededStore(t))

	_, err := client.GetBus(context.Background(), wrapperspb.String("99"))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("unknown bus code = %v, want NotFound", status.Code(err))
	}
	_, err = client.GetBus(context.Background(), wrapperspb.String(""))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("empty id code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestGetStats(t *testing.T) {
	client, _ := dialFleet(t, seededStore(t))

	resp, err := client.GetStats(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	want := model.Stats{TotalBuses: 4, ActiveBuses: 2, TotalStudents: 5, DelayedBuses: 1, UnreadAlerts: 2}
	if got := StatsFromStruct(resp); got != want {
		t.Fatalf("GetStats = %+v, want %+v", got, want)
	}
}

func TestAlertLifecycle(t *testing.T) {
	store := seededStore(t)
	client, _ := dialFleet(t, store)
	ctx := context.Background()

	resp, err := client.ListAlerts(ctx, wrapperspb.Int32(0))
	if err != nil {
		t.Fatalf("ListAlerts error: %v", err)
	}
	alerts := AlertsFromStruct(resp)
	if len(alerts) != 3 || alerts[0].ID != 1 {
		t.Fatalf("alerts = %+v", alerts)
	}

	if _, err := client.MarkAlertRead(ctx, wrapperspb.Int64(1)); err != nil {
		t.Fatalf("MarkAlertRead error: %v", err)
	}
	if _, err := client.DismissAlert(ctx, wrapperspb.Int64(2)); err != nil {
		t.Fatalf("DismissAlert error: %v", err)
	}
	if store.UnreadAlerts() != 0 || len(store.ListAlerts()) != 2 {
		t.Fatalf("store not updated: unread=%d alerts=%d", store.UnreadAlerts(), len(store.ListAlerts()))
	}

	limited, err := client.ListAlerts(ctx, wrapperspb.Int32(1))
	if err != nil {
		t.Fatalf("ListAlerts(1) error: %v", err)
	}
	if n := len(AlertsFromStruct(limited)); n != 1 {
		t.Fatalf("limited alerts = %d, want 1", n)
	}

	if _, err := client.DismissAlert(ctx, wrapperspb.Int64(2)); status.Code(err) != codes.NotFound {
		t.Fatalf("second dismiss code = %v, want NotFound", status.Code(err))
	}
	if _, err := client.ListAlerts(ctx, wrapperspb.Int32(-1)); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("negative limit code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestHealthServiceServing(t *testing.T) {
	_, conn := dialFleet(t, seededStore(t))

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health Check error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v, want SERVING", resp.GetStatus())
	}
}

func TestInterceptorsPropagateRequestID(t *testing.T) {
	var seen string
	capture := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		seen = logging.RequestIDFromContext(ctx)
		return handler(ctx, req)
	}
	client, _ := dialFleet(t, seededStore(t), grpc.ChainUnaryInterceptor(
		RequestIDUnaryServerInterceptor(nil),
		TracingUnaryServerInterceptor(),
		capture,
	))

	ctx := metadata.AppendToOutgoingContext(context.Background(), requestIDMetadataKey, "req-123")
	if _, err := client.GetStats(ctx, &emptypb.Empty{}); err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if seen != "req-123" {
		t.Fatalf("request id = %q, want req-123", seen)
	}

	if _, err := client.GetStats(context.Background(), &emptypb.Empty{}); err != nil {
		t.Fatalf("GetStats error: %v", err)
	}
	if seen == "" || seen == "req-123" {
		t.Fatalf("expected a generated request id, got %q", seen)
	}
}

func TestToStatusError(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{kb.ErrBusNotFound, codes.NotFound},
		{kb.ErrAlertNotFound, codes.NotFound},
		{kb.ErrInvalidPosition, codes.InvalidArgument},
		{ErrInvalidRequest, codes.InvalidArgument},
		{kb.ErrBusExists, codes.AlreadyExists},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tc := range cases {
		if got := status.Code(ToStatusError(tc.err)); got != tc.want {
			t.Fatalf("ToStatusError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
	if ToStatusError(nil) != nil {
		t.Fatalf("ToStatusError(nil) should be nil")
	}
}
