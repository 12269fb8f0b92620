package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/perotf-lab/expadvisor/internal/advisor"
	"github.com/perotf-lab/expadvisor/internal/advisord"
	"github.com/perotf-lab/expadvisor/internal/metrics"
	"github.com/perotf-lab/expadvisor/internal/store"
	"github.com/perotf-lab/expadvisor/pkg/logger"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var (
		httpAddr string
		grpcAddr string
		dbPath   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC suggestion service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if dbPath == "" && cfg.Output != nil {
				dbPath = cfg.Output.DB
			}

			var ledger store.Store = store.NewMemoryStore()
			if dbPath != "" {
				sq, err := store.OpenSQLite(dbPath)
				if err != nil {
					return err
				}
				ledger = sq
			}
			defer ledger.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			a, err := advisor.Build(cfg,
				advisor.WithStore(ledger),
				advisor.WithRecorder(metrics.NewPrometheus(reg)),
			)
			if err != nil {
				return err
			}
			notifier := advisord.NewNotifier()
			service := advisord.NewService(a, notifier)

			return serve(cmd.Context(), service, reg, httpAddr, grpcAddr, notifier)
		},
	}

	f := cmd.Flags()
	f.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	f.StringVar(&grpcAddr, "grpc-addr", ":50051", "gRPC listen address")
	f.StringVar(&dbPath, "db", "", "SQLite ledger (in memory when empty)")
	return cmd
}

func serve(ctx context.Context, service *advisord.Service, reg *prometheus.Registry, httpAddr, grpcAddr string, notifier *advisord.Notifier) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// TODO: configure TLS and authentication for the gRPC listener before exposing it beyond localhost.
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(advisord.RecoveryInterceptor))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	advisord.RegisterAdvisorServer(grpcServer, advisord.NewGRPCServer(service), hs)

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           advisord.NewHTTPServer(service, reg).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errc := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			errc <- err
			stop()
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hs.Shutdown()
	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	notifier.Wait()

	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}
