package client

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

type fakeWaterfallServer struct {
	calls atomic.Int32
	fn    func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var fakeWaterfallDesc = grpc.ServiceDesc{
	ServiceName: "waterfall.v1.WaterfallService",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "PerformWaterfallCalculation",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*fakeWaterfallServer)
			s.calls.Add(1)
			return s.fn(ctx, in)
		},
	}},
}

func startWaterfall(t *testing.T, fake *fakeWaterfallServer, cfg WaterfallClientConfig) *WaterfallGRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&fakeWaterfallDesc, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewWaterfallGRPCClient("passthrough:///bufnet", cfg, zerolog.Nop(),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func scenario() domain.WaterfallScenario {
	return domain.WaterfallScenario{ID: "wf-1", FundID: "fund-1", Name: "Base case", ExitValue: decimal.RequireFromString("1000")}
}

func TestPerformWaterfallCalculation(t *testing.T) {
	var gotScenarioID, gotAuth string
	fake := &fakeWaterfallServer{fn: func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		gotScenarioID = in.GetFields()["scenario"].GetStructValue().GetFields()["id"].GetStringValue()
		if md, ok := metadata.FromIncomingContext(ctx); ok && len(md.Get("authorization")) > 0 {
			gotAuth = md.Get("authorization")[0]
		}
		return structpb.NewStruct(map[string]any{
			"exitValue":     1000,
			"gpCarry":       "200.50",
			"lpTotalReturn": 799.5,
			"tiers":         []any{map[string]any{"name": "carry", "lpAmount": 0, "gpAmount": 200.5}},
		})
	}}
	c := startWaterfall(t, fake, WaterfallClientConfig{Timeout: time.Second})

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer token-1"))
	results, err := c.PerformWaterfallCalculation(ctx, scenario())

	require.NoError(t, err)
	assert.Equal(t, "wf-1", gotScenarioID)
	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "wf-1", results.ScenarioID)
	assert.True(t, results.GPCarry.Equal(decimal.RequireFromString("200.5")))
	assert.True(t, results.LPTotalReturn.Equal(decimal.RequireFromString("799.5")))
	assert.True(t, results.ExitValue.Equal(decimal.RequireFromString("1000")))
	require.Len(t, results.Tiers, 1)
	assert.Equal(t, "carry", results.Tiers[0].Name)
}

func TestPerformWaterfallCalculationNotFoundDoesNotTripBreaker(t *testing.T) {
	fake := &fakeWaterfallServer{fn: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.NotFound, "no such scenario")
	}}
	c := startWaterfall(t, fake, WaterfallClientConfig{ConsecutiveFailures: 2})

	for range 4 {
		_, err := c.PerformWaterfallCalculation(context.Background(), scenario())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound), "got %v", err)
	}
	assert.Equal(t, int32(4), fake.calls.Load())
}

func TestPerformWaterfallCalculationOpensBreaker(t *testing.T) {
	fake := &fakeWaterfallServer{fn: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "overloaded")
	}}
	c := startWaterfall(t, fake, WaterfallClientConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	for range 3 {
		_, err := c.PerformWaterfallCalculation(context.Background(), scenario())
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnavailable), "got %v", err)
	}
	assert.Equal(t, int32(2), fake.calls.Load())
}

func TestPerformWaterfallCalculationInternalError(t *testing.T) {
	fake := &fakeWaterfallServer{fn: func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Internal, "model diverged")
	}}
	c := startWaterfall(t, fake, WaterfallClientConfig{})

	_, err := c.PerformWaterfallCalculation(context.Background(), scenario())

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))
	assert.Contains(t, err.Error(), "model diverged")
}
