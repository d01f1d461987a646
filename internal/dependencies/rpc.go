package dependencies

import (
	"fmt"
	"net"

	"github.com/charmbracelet/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RealtimeService is the health service name tracking the inference channel.
const RealtimeService = "sage.realtime"

// Rpc serves the standard gRPC health protocol so orchestrators can probe the
// app without going through the HTTP stack.
type Rpc struct {
	server *grpc.Server
	health *health.Server
	port   string
	lis    net.Listener
}

func NewRpc(port string) *Rpc {
	server := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(RealtimeService, healthpb.HealthCheckResponse_SERVING)

	return &Rpc{
		server: server,
		health: hs,
		port:   port,
	}
}

func (r *Rpc) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprint(":", r.port))
	if err != nil {
		return fmt.Errorf("error listening for rpc: %w", err)
	}
	r.lis = lis

	go func() {
		if err := r.server.Serve(lis); err != nil {
			log.With("component", "rpc").Error("rpc server stopped", "err", err)
		}
	}()

	r.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	log.With("component", "rpc").Info("health server listening", "addr", lis.Addr().String())
	return nil
}

func (r *Rpc) Addr() string {
	if r.lis == nil {
		return ""
	}
	return r.lis.Addr().String()
}

func (r *Rpc) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.health.SetServingStatus(service, status)
}

func (r *Rpc) Close() {
	r.health.Shutdown()
	r.server.GracefulStop()
}
