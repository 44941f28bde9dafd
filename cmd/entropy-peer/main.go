// Command entropy-peer runs one entropy storage peer: a control-plane HTTP
// listener, a TCP transport for wire messages, and a bulk-transfer listener
// for fragment payloads, all driven by a single internal/entropy.Peer
// session.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"boson/internal/codec"
	"boson/internal/config"
	"boson/internal/controlplane"
	"boson/internal/entropy"
	"boson/internal/fsstore"
	"boson/internal/identity"
	"boson/internal/logging"
	"boson/internal/metrics"
	"boson/internal/overlay"
	"boson/internal/transport"
	"boson/internal/worker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "entropy-peer",
		Short: "Run an entropy erasure-coded storage peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a peer config file (optional)")
	return cmd
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})

	registry := prometheus.NewRegistry()
	mtr := metrics.New(registry)

	self, err := identity.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generating identity: %w", err)
	}

	if err := os.MkdirAll(cfg.FragmentsDir, 0o755); err != nil {
		return fmt.Errorf("creating fragments dir: %w", err)
	}
	fs := fsstore.New(cfg.FragmentsDir)

	codecPool, err := worker.NewAntsPool(cfg.CodecPoolSize)
	if err != nil {
		return fmt.Errorf("building codec pool: %w", err)
	}
	fsPool, err := worker.NewAntsPool(cfg.FSPoolSize)
	if err != nil {
		return fmt.Errorf("building fs pool: %w", err)
	}

	// peer is constructed below; dispatch needs peer.HandleWireMessage as its
	// inbound hook, and the overlay send func needs dispatch.Send, so both
	// close over this variable rather than the other way around.
	var peer *entropy.Peer

	tcpTransport, err := transport.NewTCP(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("building tcp transport: %w", err)
	}
	dispatch := transport.NewDispatch(tcpTransport, func(buf []byte) error {
		return peer.HandleWireMessage(buf)
	}, 0)
	defer dispatch.Close()

	closest := func(chunk codec.Chunk, fanout int) []identity.PeerId {
		return nil // single-peer bootstrap; a real deployment plugs in a Kademlia lookup here
	}
	ov, err := overlay.NewStaticClient(self.ID(), 1024, closest, func(addr string, payload []byte) error {
		return dispatch.Send(addr, payload)
	})
	if err != nil {
		return fmt.Errorf("building overlay client: %w", err)
	}

	hooks := entropy.Hooks{
		OnPutOk: func(preimage []byte) { mtr.PutsCompleted.Inc() },
		OnGetOk: func(preimage, bytes []byte) { mtr.GetsCompleted.Inc() },
		Metrics: mtr,
	}

	peer, sess, err := entropy.NewPeer(self, cfg.Params(), ov, fs, codecPool, fsPool, cfg.QueueCapacity, hooks, log)
	if err != nil {
		return fmt.Errorf("constructing peer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessErrs := make(chan error, 1)
	go func() { sessErrs <- sess.Run(ctx) }()

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}
	go func() {
		if err := tcpTransport.AcceptLoop(listener, dispatch); err != nil {
			log.WithError(err).Warn("transport accept loop exited")
		}
	}()

	bulkListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listening for bulk transfers: %w", err)
	}
	go func() {
		if err := peer.Bulk().AcceptLoop(bulkListener); err != nil {
			log.WithError(err).Warn("bulk accept loop exited")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/", controlplane.New(peer, log).Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.ControlAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Warn("control-plane server exited")
		}
	}()
	log.WithField("listen_addr", cfg.ListenAddr).WithField("control_addr", cfg.ControlAddr).Info("entropy peer started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-sessErrs:
		if err != nil {
			log.WithError(err).Error("peer session terminated")
		}
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}
