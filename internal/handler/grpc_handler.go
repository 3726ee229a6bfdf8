package handler

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-fund-distributions/internal/approval"
	"github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/service"
)

const (
	distributionServiceName = "distributions.v1.DistributionService"

	// userIDMetadataKey carries the authenticated user id on incoming calls.
	userIDMetadataKey = "x-user-id"
)

// DistributionServiceServer is the gRPC surface of the distribution service.
// Messages are google.protobuf.Struct objects with the same JSON shape as
// the HTTP API.
type DistributionServiceServer interface {
	GetDistribution(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DecideStep(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAuditTrail(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// DistributionServiceDesc describes distributions.v1.DistributionService.
var DistributionServiceDesc = grpc.ServiceDesc{
	ServiceName: distributionServiceName,
	HandlerType: (*DistributionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDistribution", Handler: unaryHandler("GetDistribution", DistributionServiceServer.GetDistribution)},
		{MethodName: "DecideStep", Handler: unaryHandler("DecideStep", DistributionServiceServer.DecideStep)},
		{MethodName: "GetAuditTrail", Handler: unaryHandler("GetAuditTrail", DistributionServiceServer.GetAuditTrail)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "distributions/v1/distributions.proto",
}

func unaryHandler(method string, call func(DistributionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(DistributionServiceServer)
		if interceptor == nil {
			return call(server, ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + distributionServiceName + "/" + method,
		}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(*structpb.Struct))
		})
	}
}

// RegisterDistributionServiceServer registers srv on s.
func RegisterDistributionServiceServer(s grpc.ServiceRegistrar, srv DistributionServiceServer) {
	s.RegisterService(&DistributionServiceDesc, srv)
}

// GRPCHandler implements DistributionServiceServer
type GRPCHandler struct {
	distributions *service.DistributionService
	routing       *service.ApprovalRoutingService
	logger        zerolog.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(distributions *service.DistributionService, routing *service.ApprovalRoutingService, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		distributions: distributions,
		routing:       routing,
		logger:        logger.With().Str("handler", "grpc").Logger(),
	}
}

// userID extracts the authenticated user ID from metadata, or returns empty string.
func userID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(userIDMetadataKey); len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// GetDistribution returns a stored distribution
func (h *GRPCHandler) GetDistribution(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	h.logger.Debug().Str("distribution_id", in.ID).Msg("gRPC GetDistribution called")

	d, err := h.distributions.GetDistribution(ctx, in.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(d)
}

// DecideStep records an approver decision
func (h *GRPCHandler) DecideStep(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		DistributionID string          `json:"distributionId"`
		StepID         string          `json:"stepId"`
		Action         approval.Action `json:"action"`
		Comment        string          `json:"comment"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}

	h.logger.Info().
		Str("distribution_id", in.DistributionID).
		Str("step_id", in.StepID).
		Str("action", string(in.Action)).
		Msg("gRPC DecideStep called")

	d, outcome, err := h.routing.DecideStep(ctx, in.DistributionID, approval.Decision{
		StepID:  in.StepID,
		Action:  in.Action,
		Comment: in.Comment,
		Actor:   userID(ctx),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"distribution": d, "outcome": outcome})
}

// GetAuditTrail returns the approval audit trail
func (h *GRPCHandler) GetAuditTrail(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		DistributionID string `json:"distributionId"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}

	trail, err := h.routing.GetAuditTrail(ctx, in.DistributionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(trail)
}

func toStatus(err error) error {
	return status.Error(errors.GRPCCode(err), err.Error())
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, dest any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}
