package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// loggingInterceptor logs each unary call; failures at Warn.
func (s *HealthServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "grpc call failed", "method", info.FullMethod, "error", err)
		return resp, err
	}
	s.logger.Debug(ctx, "grpc call", "method", info.FullMethod)
	return resp, nil
}
