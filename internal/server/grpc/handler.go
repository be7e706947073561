package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type handler struct {
	svc AuthService
}

func (h *handler) Register(ctx context.Context, req *RegisterRequest) (*AccountResponse, error) {

	account, err := h.svc.Register(ctx, req.DisplayName, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	return &AccountResponse{Account: *account}, nil
}

func (h *handler) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {

	res, err := h.svc.Login(ctx, req.Email, req.Password, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	return &LoginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, Account: res.Account}, nil
}

func (h *handler) Verify(ctx context.Context, _ *VerifyRequest) (*AccountResponse, error) {

	account, err := h.svc.VerifyToken(ctx, tokenFromContext(ctx))
	if err != nil {
		return nil, toStatus(err)
	}

	return &AccountResponse{Account: *account}, nil
}

func (h *handler) Logout(ctx context.Context, _ *LogoutRequest) (*LogoutResponse, error) {

	if err := h.svc.Logout(ctx, tokenFromContext(ctx), clientInfo(ctx)); err != nil {
		return nil, toStatus(err)
	}

	return &LogoutResponse{}, nil
}

func (h *handler) AuditLog(ctx context.Context, req *AuditLogRequest) (*AuditLogResponse, error) {

	if req.Limit < 0 || req.Offset < 0 {
		return nil, toStatus(common.ErrInvalidInput)
	}

	records, err := h.svc.AuditLog(ctx, tokenFromContext(ctx), req.Limit, req.Offset)
	if err != nil {
		return nil, toStatus(err)
	}

	return &AuditLogResponse{Records: records}, nil
}

// toStatus maps the service's error taxonomy onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, common.ErrInvalidInput.Error())
	case errors.Is(err, common.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, common.ErrDuplicateEmail.Error())
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, common.ErrInvalidCredentials.Error())
	case errors.Is(err, common.ErrAccountLocked):
		return status.Error(codes.Unauthenticated, common.ErrAccountLocked.Error())
	case errors.Is(err, common.ErrAccountDisabled):
		return status.Error(codes.Unauthenticated, common.ErrAccountDisabled.Error())
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, common.ErrForbidden.Error())
	case errors.Is(err, common.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, common.ErrRateLimited.Error())
	default:
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}
}
