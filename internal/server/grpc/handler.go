package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/habitsync/internal/common"
	pb "github.com/dmitrijs2005/habitsync/internal/proto"
	"github.com/dmitrijs2005/habitsync/internal/server/services"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func decode(in *structpb.Struct, v any) error {
	if err := pb.Decode(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := pb.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(pb.PingResponse{Status: "OK"})
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.RegisterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registration request", "username", req.Username)

	user, err := s.users.Register(ctx, req.Username, req.Salt, req.Verifier)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, status.Error(codes.AlreadyExists, "user already exists")
		}
		s.logger.Error(ctx, "registration failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info(ctx, "Registered", "username", user.UserName, "id", user.ID)
	return encode(pb.RegisterResponse{UserID: user.ID})
}

func (s *GRPCServer) GetSalt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.GetSaltRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	salt, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return encode(pb.GetSaltResponse{Salt: salt})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.LoginRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	tokens, err := s.users.Login(ctx, req.Username, req.Verifier)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	return encode(pb.LoginResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken, UserID: tokens.UserID})
}

func (s *GRPCServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.RefreshRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrRefreshTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		return nil, status.Error(codes.Internal, "internal error")
	}

	return encode(pb.RefreshResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

func (s *GRPCServer) EnsureZone(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.ZoneRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.records.EnsureZone(ctx, userIDFromContext(ctx), req.Zone); err != nil {
		return nil, s.recordStatus(ctx, err)
	}
	return encode(pb.Empty{})
}

func (s *GRPCServer) RegisterSubscription(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.ZoneRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.records.RegisterSubscription(ctx, userIDFromContext(ctx), req.Zone); err != nil {
		return nil, s.recordStatus(ctx, err)
	}
	return encode(pb.Empty{})
}

func (s *GRPCServer) FetchChanges(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.FetchChangesRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	res, err := s.records.FetchChanges(ctx, userIDFromContext(ctx), req.Zone, req.Cursor, req.Limit)
	if err != nil {
		return nil, s.recordStatus(ctx, err)
	}

	resp := pb.FetchChangesResponse{
		Records:    make([]pb.WireRecord, 0, len(res.Records)),
		Deleted:    res.Deleted,
		Cursor:     res.Cursor,
		MoreComing: res.MoreComing,
	}
	for _, r := range res.Records {
		resp.Records = append(resp.Records, toWire(r))
	}
	return encode(resp)
}

func (s *GRPCServer) SendChanges(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.SendChangesRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}

	saves := make([]services.Record, 0, len(req.Saves))
	for _, w := range req.Saves {
		saves = append(saves, fromWire(w))
	}

	res, err := s.records.SendChanges(ctx, userIDFromContext(ctx), deviceIDFromContext(ctx), req.Zone, saves, req.Deletes)
	if err != nil {
		return nil, s.recordStatus(ctx, err)
	}

	resp := pb.SendChangesResponse{
		Saved:         make([]pb.WireRecord, 0, len(res.Saved)),
		Deleted:       res.Deleted,
		FailedSaves:   make([]pb.ItemFailure, 0, len(res.FailedSaves)),
		FailedDeletes: make([]pb.ItemFailure, 0, len(res.FailedDeletes)),
	}
	for _, r := range res.Saved {
		resp.Saved = append(resp.Saved, toWire(r))
	}
	for _, f := range res.FailedSaves {
		resp.FailedSaves = append(resp.FailedSaves, toWireFailure(f))
	}
	for _, f := range res.FailedDeletes {
		resp.FailedDeletes = append(resp.FailedDeletes, toWireFailure(f))
	}
	return encode(resp)
}

// Subscribe streams a ChangeEvent each time another device of the caller
// changes the requested zone. It returns when the client goes away.
func (s *GRPCServer) Subscribe(in *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	var req pb.ZoneRequest
	if err := decode(in, &req); err != nil {
		return err
	}
	userID, deviceID := userIDFromContext(ctx), deviceIDFromContext(ctx)

	events, cancel := s.events.Subscribe(ctx, userID)
	defer cancel()

	s.logger.Debug(ctx, "subscriber attached", "user", userID, "device", deviceID, "zone", req.Zone)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Zone != req.Zone || (deviceID != "" && ev.Origin == deviceID) {
				continue
			}
			msg, err := encode(pb.ChangeEvent{Zone: ev.Zone, Origin: ev.Origin})
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// recordStatus maps a record store error to a status. Errors a client
// must react to carry an ErrorInfo reason.
func (s *GRPCServer) recordStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrZoneNotFound):
		return statusWithReason(codes.NotFound, pb.ReasonZoneNotFound, err.Error())
	case errors.Is(err, common.ErrCursorExpired):
		return statusWithReason(codes.FailedPrecondition, pb.ReasonCursorExpired, err.Error())
	case errors.Is(err, common.ErrAccountChanged):
		return statusWithReason(codes.FailedPrecondition, pb.ReasonAccountChanged, err.Error())
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrBusy):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.Error(ctx, "record store failure", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func statusWithReason(code codes.Code, reason, msg string) error {
	st := status.New(code, msg)
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: pb.ErrorDomain})
	if err != nil {
		return st.Err()
	}
	return withInfo.Err()
}

func itemCode(err error) string {
	switch {
	case errors.Is(err, common.ErrConflict):
		return pb.ItemCodeConflict
	case errors.Is(err, common.ErrZoneNotFound):
		return pb.ItemCodeZoneNotFound
	case errors.Is(err, common.ErrNotFound):
		return pb.ItemCodeNotFound
	case errors.Is(err, services.ErrInvalidRecord):
		return pb.ItemCodeInvalid
	case errors.Is(err, common.ErrBusy):
		return pb.ItemCodeBusy
	}
	return pb.ItemCodeInternal
}

func toWireFailure(f services.ItemFailure) pb.ItemFailure {
	out := pb.ItemFailure{ID: f.ID, Code: itemCode(f.Err)}
	if f.Err != nil {
		out.Message = f.Err.Error()
	}
	if f.Server != nil {
		w := toWire(*f.Server)
		out.ServerRecord = &w
	}
	return out
}

func toWire(r services.Record) pb.WireRecord {
	w := pb.WireRecord{ID: r.ID, Type: r.Type, Fields: r.Fields}
	if r.VersionToken != "" {
		w.VersionToken = []byte(r.VersionToken)
	}
	if r.Asset != nil {
		w.Asset = &pb.WireAsset{Checksum: r.Asset.Checksum, Data: r.Asset.Data}
	}
	return w
}

func fromWire(w pb.WireRecord) services.Record {
	r := services.Record{ID: w.ID, Type: w.Type, Fields: w.Fields, VersionToken: string(w.VersionToken)}
	if w.Asset != nil {
		r.Asset = &services.Asset{Checksum: w.Asset.Checksum, Data: w.Asset.Data}
	}
	return r
}
