package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	pg "github.com/ogurasousui/employer-onboarding/internal/platform/db/postgres"
)

// ServiceName は社員 API のヘルスチェック上のサービス名です。
const ServiceName = "employers"

const (
	defaultHealthInterval = 15 * time.Second
	pingTimeout           = 2 * time.Second
)

// Server は gRPC サーバーのライフサイクルを管理します。
// 標準の grpc.health.v1 を提供し、データベースの疎通で状態を切り替えます。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	health     *health.Server
	db         pg.Pinger
	interval   time.Duration
	log        *zap.Logger
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
func New(listenAddr string, db pg.Pinger, interval time.Duration, log *zap.Logger, opts ...grpc.ServerOption) *Server {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	if log == nil {
		log = zap.NewNop()
	}

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		health:     hs,
		db:         db,
		interval:   interval,
		log:        log,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は与えられたリスナーで待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.refresh(ctx)

	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はヘルス状態を NOT_SERVING にしてからサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Server) refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		if err := pg.PingWithTimeout(ctx, s.db, pingTimeout); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("database ping failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
