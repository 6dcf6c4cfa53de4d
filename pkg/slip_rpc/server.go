package slip_rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/robertfarnum/go_slip/pkg/slip_link"
)

var _ grpc.ServiceRegistrar = (*Server)(nil)

// serviceInfo is built from a grpc.ServiceDesc on registration.
type serviceInfo struct {
	serviceImpl any
	name        string
	methods     map[uint32]*grpc.MethodDesc
}

type ServerOption func(*Server)

func WithServerLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLinkOptions applies opts to every link the server serves.
func WithLinkOptions(opts ...slip_link.Option) ServerOption {
	return func(s *Server) {
		s.linkOpts = append(s.linkOpts, opts...)
	}
}

// Server dispatches unary RPC requests to registered services. One server
// can serve any number of links.
type Server struct {
	logger   zerolog.Logger
	linkOpts []slip_link.Option

	mu       sync.Mutex
	services map[uint32]*serviceInfo
	conns    map[*Conn]struct{}
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		logger:   zerolog.Nop(),
		services: make(map[uint32]*serviceInfo),
		conns:    make(map[*Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterService registers a service and its implementation. It panics if
// impl does not implement sd.HandlerType or the service is already
// registered. Streaming methods are not served.
func (s *Server) RegisterService(sd *grpc.ServiceDesc, impl any) {
	if impl != nil {
		ht := reflect.TypeOf(sd.HandlerType).Elem()
		st := reflect.TypeOf(impl)
		if !st.Implements(ht) {
			panic(fmt.Sprintf("slip_rpc: RegisterService found the handler of type %v that does not satisfy %v", st, ht))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	serviceID := Hash(sd.ServiceName)
	if _, ok := s.services[serviceID]; ok {
		panic(fmt.Sprintf("slip_rpc: RegisterService found duplicate service registration for %q", sd.ServiceName))
	}

	info := &serviceInfo{
		serviceImpl: impl,
		name:        sd.ServiceName,
		methods:     make(map[uint32]*grpc.MethodDesc),
	}
	for i := range sd.Methods {
		d := &sd.Methods[i]
		info.methods[Hash(d.MethodName)] = d
	}
	for _, d := range sd.Streams {
		s.logger.Warn().Str("service", sd.ServiceName).Str("stream", d.StreamName).Msg("streaming method not served")
	}

	s.services[serviceID] = info

	s.logger.Debug().Str("service", sd.ServiceName).Uint32("service_id", serviceID).Msg("registered service")
}

// Serve runs the server on a single stream until it ends or ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	opts := append([]slip_link.Option{slip_link.WithLogger(s.logger)}, s.linkOpts...)
	conn := NewConn(rwc, s, opts...)

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	return conn.Run(ctx)
}

// Listen accepts connections on network/address and serves each one until
// ctx is cancelled.
func (s *Server) Listen(ctx context.Context, network, address string) error {
	lis, err := net.Listen(network, address)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", network, address, err)
	}

	return s.ServeListener(ctx, lis)
}

// ServeListener serves every connection accepted on lis. The listener is
// closed when ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return lis.Close()
	})

	s.logger.Info().Str("address", lis.Addr().String()).Msg("server listening")

	g.Go(func() error {
		for {
			nc, err := lis.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("accept: %w", err)
			}

			remote := nc.RemoteAddr().String()
			s.logger.Info().Str("remote", remote).Msg("client connected")

			g.Go(func() error {
				err := s.Serve(ctx, nc)
				if err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Warn().Err(err).Str("remote", remote).Msg("client disconnected")
				} else {
					s.logger.Info().Str("remote", remote).Msg("client disconnected")
				}
				return nil
			})
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Log sends msg to the log address of every connected peer.
func (s *Server) Log(ctx context.Context, msg string) error {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	var errs []error
	for _, conn := range conns {
		if err := conn.SendLog(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Server) HandlePacket(ctx context.Context, conn *Conn, packet *Packet) error {
	switch packet.Type {
	case PacketTypeRequest:
		go s.handleRequest(ctx, conn, packet)
	case PacketTypeClientError, PacketTypeClientRequestCompletion:
		s.logger.Debug().Stringer("type", packet.Type).Uint32("call_id", packet.CallID).Msg("ignoring packet for unary call")
	default:
		s.logger.Warn().Stringer("type", packet.Type).Msg("server received unexpected packet")
	}

	return nil
}

func (s *Server) handleRequest(ctx context.Context, conn *Conn, packet *Packet) {
	resp := &Packet{
		Type:      PacketTypeResponse,
		ChannelID: packet.ChannelID,
		ServiceID: packet.ServiceID,
		MethodID:  packet.MethodID,
		CallID:    packet.CallID,
	}

	payload, err := s.invoke(ctx, packet)
	if err != nil {
		st := status.Convert(err)
		resp.Type = PacketTypeServerError
		resp.Status = st.Code()
		resp.Payload = []byte(st.Message())

		s.logger.Debug().
			Uint32("service_id", packet.ServiceID).
			Uint32("method_id", packet.MethodID).
			Stringer("code", st.Code()).
			Msg("request failed")
	} else {
		resp.Payload = payload
	}

	err = conn.Send(ctx, resp)
	if errors.Is(err, slip_link.ErrFrameTooLarge) {
		resp.Type = PacketTypeServerError
		resp.Status = codes.ResourceExhausted
		resp.Payload = []byte(err.Error())
		err = conn.Send(ctx, resp)
	}
	if err != nil {
		s.logger.Warn().Err(err).Uint32("call_id", packet.CallID).Msg("send response")
	}
}

func (s *Server) invoke(ctx context.Context, packet *Packet) ([]byte, error) {
	s.mu.Lock()
	service, ok := s.services[packet.ServiceID]
	s.mu.Unlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "service %d not found", packet.ServiceID)
	}

	method, ok := service.methods[packet.MethodID]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "method %d not found in %s", packet.MethodID, service.name)
	}

	res, err := method.Handler(service.serviceImpl, ctx, func(in any) error {
		msg, ok := in.(proto.Message)
		if !ok {
			return status.Errorf(codes.Internal, "invalid request type: %T", in)
		}
		if err := proto.Unmarshal(packet.Payload, msg); err != nil {
			return status.Errorf(codes.InvalidArgument, "unmarshal request: %v", err)
		}
		return nil
	}, nil)
	if err != nil {
		return nil, err
	}

	msg, ok := res.(proto.Message)
	if !ok {
		return nil, status.Errorf(codes.Internal, "invalid response type: %T", res)
	}

	payload, err := proto.Marshal(msg)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}

	return payload, nil
}
