package grpc

import (
	"context"
	"net"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const tokenKey ctxKey = "token"

var tokenMethods = map[string]bool{
	MethodVerify:   true,
	MethodLogout:   true,
	MethodAuditLog: true,
}

// accessTokenInterceptor puts the session token of authenticated methods into
// the context. The service performs the actual verification.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if tokenMethods[info.FullMethod] {
		token := tokenFromMetadata(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}
		ctx = context.WithValue(ctx, tokenKey, token)
	}

	return handler(ctx, req)
}

// rateLimitInterceptor throttles Login per peer address. Rejected attempts
// are audited by the service; limiter failures let the call through.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if s.limiter == nil || info.FullMethod != MethodLogin {
		return handler(ctx, req)
	}

	client := clientInfo(ctx)

	allowed, err := s.limiter.Allow(ctx, client.SourceAddress)
	if err != nil {
		s.logger.Warn(ctx, "rate limiter unavailable, allowing request", "error", err)
		return handler(ctx, req)
	}
	if allowed {
		return handler(ctx, req)
	}

	var email string
	if r, ok := req.(*LoginRequest); ok {
		email = r.Email
	}
	return nil, toStatus(s.svc.RejectRateLimited(ctx, email, client))
}

// tokenFromMetadata accepts the token bare or with a Bearer prefix.
func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(common.AuthorizationHeaderName)
	if len(values) == 0 {
		return ""
	}
	v := strings.TrimSpace(values[0])
	if len(v) > len(common.BearerPrefix) && strings.EqualFold(v[:len(common.BearerPrefix)], common.BearerPrefix) {
		v = strings.TrimSpace(v[len(common.BearerPrefix):])
	}
	return v
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

func clientInfo(ctx context.Context) services.ClientInfo {
	var info services.ClientInfo

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		info.SourceAddress = addr
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ua := md.Get("user-agent"); len(ua) > 0 {
			info.UserAgent = ua[0]
		}
	}

	return info
}
