package grpc

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// editMethods change the sheet and need the service token
var editMethods = map[string]bool{
	"AddTier":    true,
	"UpdateTier": true,
	"RemoveTier": true,
	"AddRule":    true,
	"RemoveRule": true,
}

// TokenInterceptor requires "authorization: Bearer <token>" on the methods that
// change the sheet. Reads and exports stay open.
func TokenInterceptor(token string) grpc.UnaryServerInterceptor {
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		method, ok := strings.CutPrefix(info.FullMethod, prefix)
		if !ok || !editMethods[method] {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		for _, v := range md.Get("authorization") {
			got, found := strings.CutPrefix(v, "Bearer ")
			if found && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1 {
				return handler(ctx, req)
			}
		}
		return nil, status.Error(codes.Unauthenticated, "a valid service token is required")
	}
}

// WithToken attaches the service token to every call made with the returned context
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
