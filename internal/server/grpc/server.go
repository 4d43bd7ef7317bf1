// Package grpc exposes the record store over gRPC: accounts and tokens,
// zone management, change exchange and push notifications.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/logging"
	pb "github.com/dmitrijs2005/habitsync/internal/proto"
	"github.com/dmitrijs2005/habitsync/internal/server/models"
	"github.com/dmitrijs2005/habitsync/internal/server/realtime"
	"github.com/dmitrijs2005/habitsync/internal/server/services"
	"google.golang.org/grpc"
)

type userSvc interface {
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifierCandidate []byte) (*services.TokenPair, error)
	UserIDFromToken(token string) (string, error)
}

type recordSvc interface {
	EnsureZone(ctx context.Context, userID, zone string) error
	RegisterSubscription(ctx context.Context, userID, zone string) error
	FetchChanges(ctx context.Context, userID, zone string, cursor []byte, limit int) (*services.FetchResult, error)
	SendChanges(ctx context.Context, userID, origin, zone string, saves []services.Record, deletes []string) (*services.SendResult, error)
}

type eventSource interface {
	Subscribe(ctx context.Context, userID string) (<-chan realtime.Event, func())
}

type GRPCServer struct {
	pb.UnimplementedRecordStoreServer
	address string
	users   userSvc
	records recordSvc
	events  eventSource
	logger  logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, us userSvc, rs recordSvc, events eventSource) *GRPCServer {
	return &GRPCServer{
		address: address,
		logger:  l.With("module", "grpc_server"),
		users:   us,
		records: rs,
		events:  events,
	}
}

// newServer builds the gRPC server with interceptors and the record store
// service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
		grpc.MaxRecvMsgSize(common.MaxMessageSize),
		grpc.MaxSendMsgSize(common.MaxMessageSize),
	)
	pb.RegisterRecordStoreServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx ends.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx ends, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
