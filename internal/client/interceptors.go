package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/pesio-ai/be-fund-distributions/internal/common/middleware"
)

// requestIDMetadataKey is the outgoing metadata key for the HTTP request id.
const requestIDMetadataKey = "x-request-id"

// forwardMetadata propagates the caller's incoming metadata (auth token
// included) to the waterfall service and tags the call with the request id
// assigned by the HTTP middleware, when there is one.
func forwardMetadata(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	md, _ := metadata.FromIncomingContext(ctx)
	md = md.Copy()
	if id := middleware.RequestIDFromContext(ctx); id != "" && len(md.Get(requestIDMetadataKey)) == 0 {
		md.Set(requestIDMetadataKey, id)
	}
	if md.Len() > 0 {
		ctx = metadata.NewOutgoingContext(ctx, md)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}
