package fleetrpc

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
)

// Server implements FleetServiceServer over a KnowledgeBase.
type Server struct {
	store *kb.KnowledgeBase
	log   logging.Logger
}

var _ FleetServiceServer = (*Server)(nil)

// NewServer wires a Server to the shared store.
func NewServer(store *kb.KnowledgeBase, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{store: store, log: log}
}

// Register adds the fleet service and a health service reporting SERVING
// to s.
func Register(s *grpc.Server, srv *Server) *health.Server {
	RegisterFleetServiceServer(s, srv)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

func (s *Server) GetFleet(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	query := in.GetValue()
	_, span := startChildSpan(ctx, "FleetService.FilterBuses", attribute.String("query", query))
	buses := s.store.FilterBuses(query)
	span.End()

	list := make([]any, 0, len(buses))
	for _, b := range buses {
		list = append(list, busValue(b))
	}
	return newStruct(map[string]any{"buses": list, "count": len(buses)})
}

func (s *Server) GetBus(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := in.GetValue()
	if id == "" {
		return nil, ToStatusError(fmt.Errorf("%w: bus id is required", ErrInvalidRequest))
	}
	_, span := startChildSpan(ctx, "FleetService.GetBus", attribute.String("bus_id", id))
	defer span.End()

	b, err := s.store.GetBus(id)
	if err != nil {
		span.RecordError(err)
		return nil, ToStatusError(err)
	}
	return newStruct(busValue(b))
}

func (s *Server) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return newStruct(statsValue(s.store.Stats()))
}

func (s *Server) ListAlerts(ctx context.Context, in *wrapperspb.Int32Value) (*structpb.Struct, error) {
	limit := int(in.GetValue())
	if limit < 0 {
		return nil, ToStatusError(fmt.Errorf("%w: negative limit %d", ErrInvalidRequest, limit))
	}
	alerts := s.store.ListAlerts()
	if limit > 0 {
		alerts = s.store.RecentAlerts(limit)
	}

	list := make([]any, 0, len(alerts))
	for _, a := range alerts {
		list = append(list, alertValue(a))
	}
	return newStruct(map[string]any{"alerts": list, "unread": s.store.UnreadAlerts()})
}

func (s *Server) MarkAlertRead(ctx context.Context, in *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	id := int(in.GetValue())
	if err := s.store.MarkAlertRead(id); err != nil {
		return nil, ToStatusError(err)
	}
	logger(ctx, s.log).Info(ctx, "alert marked read", logging.Int("alert_id", id))
	return &emptypb.Empty{}, nil
}

func (s *Server) DismissAlert(ctx context.Context, in *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	id := int(in.GetValue())
	if err := s.store.DismissAlert(id); err != nil {
		return nil, ToStatusError(err)
	}
	logger(ctx, s.log).Info(ctx, "alert dismissed", logging.Int("alert_id", id))
	return &emptypb.Empty{}, nil
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return st, nil
}

func logger(ctx context.Context, fallback logging.Logger) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return fallback
}
