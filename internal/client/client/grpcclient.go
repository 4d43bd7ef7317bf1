package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/habitsync/internal/client/models"
	"github.com/dmitrijs2005/habitsync/internal/common"
	"github.com/dmitrijs2005/habitsync/internal/netx"
	pb "github.com/dmitrijs2005/habitsync/internal/proto"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const defaultCallTimeout = 30 * time.Second

type Option func(*GRPCClient)

// WithZone sets the record zone, common.DefaultZoneName by default.
func WithZone(zone string) Option {
	return func(c *GRPCClient) { c.zone = zone }
}

// WithDeviceID sets the id sent with every call so the server does not
// push this device its own changes.
func WithDeviceID(id string) Option {
	return func(c *GRPCClient) { c.deviceID = id }
}

// WithAssets sets where outgoing assets are read from and incoming ones
// staged.
func WithAssets(files AssetFiles) Option {
	return func(c *GRPCClient) { c.files = files }
}

// WithPageSize caps the number of changes per fetch.
func WithPageSize(n int) Option {
	return func(c *GRPCClient) { c.pageSize = n }
}

func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

type GRPCClient struct {
	endpointURL string
	zone        string
	deviceID    string
	pageSize    int
	files       AssetFiles
	dialOpts    []grpc.DialOption

	conn   *grpc.ClientConn
	client pb.RecordStoreClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string

	refreshMu sync.Mutex
}

func NewGRPCClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, zone: common.DefaultZoneName}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.initGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *GRPCClient) initGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.unaryInterceptor),
		grpc.WithStreamInterceptor(c.streamInterceptor),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(common.MaxMessageSize),
			grpc.MaxCallSendMsgSize(common.MaxMessageSize),
		),
	}, c.dialOpts...)

	conn, err := grpc.NewClient(c.endpointURL, opts...)
	if err != nil {
		return err
	}
	c.conn = conn
	c.client = pb.NewRecordStoreClient(conn)
	return nil
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *GRPCClient) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
}

func (c *GRPCClient) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

func (c *GRPCClient) withCredentials(ctx context.Context) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	if token := c.token(); token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}
	if c.deviceID != "" {
		md.Set(common.DeviceIDHeaderName, c.deviceID)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) unaryInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(c.withCredentials(ctx), method, req, reply, cc, opts...)
}

func (c *GRPCClient) streamInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(c.withCredentials(ctx), desc, cc, method, opts...)
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	var resp pb.PingResponse
	if err := c.call(ctx, c.client.Ping, pb.Empty{}, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return common.ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) Register(ctx context.Context, username string, salt []byte, verifier []byte) (string, error) {
	var resp pb.RegisterResponse
	req := pb.RegisterRequest{Username: username, Salt: salt, Verifier: verifier}
	if err := c.call(ctx, c.client.Register, req, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

func (c *GRPCClient) GetSalt(ctx context.Context, username string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()

	var resp pb.GetSaltResponse
	if err := c.call(ctx, c.client.GetSalt, pb.GetSaltRequest{Username: username}, &resp); err != nil {
		return nil, err
	}
	return resp.Salt, nil
}

// Login authenticates and keeps the returned token pair for later calls.
// It returns the account id.
func (c *GRPCClient) Login(ctx context.Context, username string, verifier []byte) (string, error) {
	var resp pb.LoginResponse
	if err := c.call(ctx, c.client.Login, pb.LoginRequest{Username: username, Verifier: verifier}, &resp); err != nil {
		return "", err
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return resp.UserID, nil
}

// refresh trades the refresh token for a new token pair. stale is the
// access token the failed call was made with; when another call already
// replaced it there is nothing to do.
func (c *GRPCClient) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	c.mu.RLock()
	access, refresh := c.accessToken, c.refreshToken
	c.mu.RUnlock()

	if access != stale {
		return nil
	}
	if refresh == "" {
		return common.ErrUnauthenticated
	}

	in, err := pb.Encode(pb.RefreshRequest{RefreshToken: refresh})
	if err != nil {
		return err
	}
	out, err := c.client.Refresh(ctx, in)
	if err != nil {
		return mapError(err)
	}
	var resp pb.RefreshResponse
	if err := pb.Decode(out, &resp); err != nil {
		return err
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

func (c *GRPCClient) EnsureZone(ctx context.Context) error {
	return c.call(ctx, c.client.EnsureZone, pb.ZoneRequest{Zone: c.zone}, nil)
}

func (c *GRPCClient) RegisterSubscription(ctx context.Context) error {
	return c.call(ctx, c.client.RegisterSubscription, pb.ZoneRequest{Zone: c.zone}, nil)
}

// FetchChanges fetches one page of changes. Assets of the page are staged
// in the asset store; staged files of earlier pages are discarded first.
func (c *GRPCClient) FetchChanges(ctx context.Context, cursor []byte) (models.FetchResult, error) {
	if c.files != nil {
		if err := c.files.ClearStaging(); err != nil {
			return models.FetchResult{}, err
		}
	}

	var resp pb.FetchChangesResponse
	req := pb.FetchChangesRequest{Zone: c.zone, Cursor: cursor, Limit: c.pageSize}
	if err := c.call(ctx, c.client.FetchChanges, req, &resp); err != nil {
		return models.FetchResult{}, err
	}

	out := models.FetchResult{Deleted: resp.Deleted, Cursor: resp.Cursor, MoreComing: resp.MoreComing}
	for _, w := range resp.Records {
		rr, err := c.fromWire(w)
		if err != nil {
			return models.FetchResult{}, err
		}
		out.Changed = append(out.Changed, rr)
	}
	return out, nil
}

func (c *GRPCClient) SendChanges(ctx context.Context, saves []models.RemoteRecord, deletes []string) (models.SendResult, error) {
	req := pb.SendChangesRequest{Zone: c.zone, Deletes: deletes}
	for _, rr := range saves {
		w, err := c.toWire(rr)
		if err != nil {
			return models.SendResult{}, err
		}
		req.Saves = append(req.Saves, w)
	}

	var resp pb.SendChangesResponse
	if err := c.call(ctx, c.client.SendChanges, req, &resp); err != nil {
		return models.SendResult{}, err
	}

	out := models.SendResult{Deleted: resp.Deleted}
	for _, w := range resp.Saved {
		rr, err := c.fromWire(w)
		if err != nil {
			return models.SendResult{}, err
		}
		out.Saved = append(out.Saved, rr)
	}
	for _, f := range resp.FailedSaves {
		fs := models.FailedSave{ID: f.ID, Err: itemError(f)}
		if f.ServerRecord != nil {
			rr, err := c.fromWire(*f.ServerRecord)
			if err != nil {
				return models.SendResult{}, err
			}
			fs.ServerRecord = &rr
		}
		out.FailedSaves = append(out.FailedSaves, fs)
	}
	for _, f := range resp.FailedDeletes {
		out.FailedDeletes = append(out.FailedDeletes, models.FailedDelete{ID: f.ID, Err: itemError(f)})
	}
	return out, nil
}

func (c *GRPCClient) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	in, err := pb.Encode(pb.ZoneRequest{Zone: c.zone})
	if err != nil {
		return nil, err
	}
	stream, err := c.client.Subscribe(ctx, in)
	if err != nil {
		return nil, mapError(err)
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		for {
			if _, err := stream.Recv(); err != nil {
				return
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()
	return wake, nil
}

type unaryCall func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

// call encodes req, invokes fn and decodes the response into resp, which
// may be nil. An expired access token is refreshed once and the call
// retried.
func (c *GRPCClient) call(ctx context.Context, fn unaryCall, req any, resp any) error {
	in, err := pb.Encode(req)
	if err != nil {
		return err
	}
	stale := c.token()
	out, err := fn(ctx, in)
	if status.Code(err) == codes.Unauthenticated && stale != "" {
		if rerr := c.refresh(ctx, stale); rerr == nil {
			out, err = fn(ctx, in)
		}
	}
	if err != nil {
		return mapError(err)
	}
	if resp == nil {
		return nil
	}
	return pb.Decode(out, resp)
}

// mapError translates a gRPC failure into a common remote store error.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		if netx.IsTransient(err) {
			return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
		}
		return fmt.Errorf("rpc error: %w", err)
	}

	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok {
			continue
		}
		switch info.GetReason() {
		case pb.ReasonZoneNotFound:
			return fmt.Errorf("%w: %s", common.ErrZoneNotFound, st.Message())
		case pb.ReasonCursorExpired:
			return fmt.Errorf("%w: %s", common.ErrCursorExpired, st.Message())
		case pb.ReasonAccountChanged:
			return fmt.Errorf("%w: %s", common.ErrAccountChanged, st.Message())
		}
	}

	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", common.ErrUnauthenticated, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", common.ErrUnavailable, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", common.ErrBusy, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", common.ErrCancelled, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrNotFound, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, st.Message())
	case codes.Aborted:
		return fmt.Errorf("%w: %s", common.ErrConflict, st.Message())
	case codes.OutOfRange:
		return fmt.Errorf("%w: %s", common.ErrCursorExpired, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
