package events

import (
	"fmt"
	"net"
	"sync/atomic"

	"google.golang.org/grpc"
)

// GRPCBridgeConfig configures the optional gRPC bridge's listener. No
// event-streaming service is registered on it (see GRPCBridge).
type GRPCBridgeConfig struct {
	ListenAddr string
}

// GRPCBridge relays Registry events over gRPC. It mirrors the shape the
// teacher ships for its own not-yet-generated proto service: the server
// plumbing (listener, grpc.Server, lifecycle flag) is real, but the RPC
// handler is a stub until a generated service definition exists.
type GRPCBridge struct {
	cfg      GRPCBridgeConfig
	registry *Registry

	server   *grpc.Server
	listener net.Listener
	running  atomic.Bool
}

// NewGRPCBridge constructs a bridge over registry, unstarted.
func NewGRPCBridge(cfg GRPCBridgeConfig, registry *Registry) *GRPCBridge {
	return &GRPCBridge{cfg: cfg, registry: registry}
}

// Start opens the listener and begins serving. The actual event-streaming
// RPC is not registered: no generated service stub exists yet for this
// event set, so external relay is a placeholder until one is generated.
func (b *GRPCBridge) Start() error {
	if b.running.Load() {
		return fmt.Errorf("grpc bridge already running")
	}
	lis, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("events: listen on %s: %w", b.cfg.ListenAddr, err)
	}
	b.listener = lis
	b.server = grpc.NewServer()
	// TODO: register the timeline event streaming service once its proto
	// is generated; until then this bridge only holds the listener open.
	b.running.Store(true)

	go func() {
		_ = b.server.Serve(lis)
	}()
	return nil
}

// Stop gracefully shuts the bridge down.
func (b *GRPCBridge) Stop() {
	if !b.running.Load() {
		return
	}
	b.running.Store(false)
	if b.server != nil {
		b.server.GracefulStop()
	}
	if b.listener != nil {
		b.listener.Close()
	}
}
