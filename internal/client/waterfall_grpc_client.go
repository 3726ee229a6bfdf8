package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/pesio-ai/be-fund-distributions/internal/common/errors"
	"github.com/pesio-ai/be-fund-distributions/internal/domain"
)

// PerformWaterfallCalculationMethod is the full gRPC method name of the
// waterfall service's calculation endpoint.
const PerformWaterfallCalculationMethod = "/waterfall.v1.WaterfallService/PerformWaterfallCalculation"

// WaterfallClientConfig tunes the call timeout and circuit breaker.
type WaterfallClientConfig struct {
	Timeout             time.Duration
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// WaterfallGRPCClient is a gRPC client for the waterfall calculation service.
// Requests and responses are google.protobuf.Struct messages carrying the
// scenario and results as JSON objects.
type WaterfallGRPCClient struct {
	conn    *grpc.ClientConn
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	log     zerolog.Logger
}

// NewWaterfallGRPCClient creates a new waterfall gRPC client. Extra dial
// options are appended to the defaults.
func NewWaterfallGRPCClient(address string, cfg WaterfallClientConfig, log zerolog.Logger, opts ...grpc.DialOption) (*WaterfallGRPCClient, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(forwardMetadata),
	}, opts...)

	conn, err := grpc.NewClient(address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to waterfall service: %w", err)
	}

	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "waterfall-service",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !transportFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return &WaterfallGRPCClient{conn: conn, breaker: breaker, timeout: cfg.Timeout, log: log}, nil
}

// Close closes the gRPC connection
func (c *WaterfallGRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// PerformWaterfallCalculation runs the external carry model for a scenario.
// Failures are returned as coded errors: SERVICE_UNAVAILABLE when the service
// cannot be reached or the breaker is open.
func (c *WaterfallGRPCClient) PerformWaterfallCalculation(ctx context.Context, scenario domain.WaterfallScenario) (*domain.WaterfallResults, error) {
	req, err := toStruct(map[string]any{"scenario": scenario})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to encode waterfall scenario")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	out, err := c.breaker.Execute(func() (any, error) {
		resp := &structpb.Struct{}
		if err := c.conn.Invoke(ctx, PerformWaterfallCalculationMethod, req, resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, c.classify(scenario.ID, err)
	}

	results := &domain.WaterfallResults{}
	if err := fromStruct(out.(*structpb.Struct), results); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to decode waterfall results")
	}
	if results.ScenarioID == "" {
		results.ScenarioID = scenario.ID
	}
	return results, nil
}

func (c *WaterfallGRPCClient) classify(scenarioID string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Warn().Str("scenario_id", scenarioID).Msg("Waterfall circuit breaker is open, request rejected")
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "waterfall service is currently unavailable")
	}

	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		return apperrors.NotFound("waterfall_scenario", scenarioID)
	case codes.InvalidArgument:
		return apperrors.InvalidInput("scenario", st.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Canceled:
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "waterfall service is unavailable")
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "waterfall calculation failed")
}

// transportFailure reports whether err should count against the breaker.
func transportFailure(err error) bool {
	switch status.Code(err) {
	case codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition:
		return false
	}
	return true
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, dest any) error {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
