package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ciricc/hwexplore/internal/config"
	"github.com/ciricc/hwexplore/internal/health"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	var (
		cfgPath  = flag.String("config", "", "optional config.yaml for the health address")
		dialAddr = flag.String("addr", "", "override health address (e.g., localhost:8090)")
		service  = flag.String("service", health.TraversalService, "service to query")
		watch    = flag.Bool("watch", false, "stream status changes until the batch stops serving")
		timeout  = flag.Duration("timeout", 5*time.Second, "timeout for a single check")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	addr := cfg.Health.Address
	if strings.TrimSpace(*dialAddr) != "" {
		addr = *dialAddr
	}

	client, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("new client: %v", err)
	}
	defer client.Close()
	hc := grpc_health_v1.NewHealthClient(client)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("service", *service, "addr", addr)

	if !*watch {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		resp, err := hc.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: *service})
		if err != nil {
			log.Fatalf("check: %v", err)
		}
		logger.InfoContext(ctx, "status", "status", resp.GetStatus().String())
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			os.Exit(1)
		}
		return
	}

	ctx := context.Background()
	stream, err := hc.Watch(ctx, &grpc_health_v1.HealthCheckRequest{Service: *service})
	if err != nil {
		log.Fatalf("watch: %v", err)
	}
	seenServing := false
	for {
		resp, rerr := stream.Recv()
		if errors.Is(rerr, io.EOF) {
			return
		}
		if rerr != nil {
			log.Fatalf("recv: %v", rerr)
		}
		st := resp.GetStatus()
		logger.InfoContext(ctx, "status", "status", st.String())
		switch st {
		case grpc_health_v1.HealthCheckResponse_SERVING:
			seenServing = true
		case grpc_health_v1.HealthCheckResponse_NOT_SERVING:
			if seenServing {
				return
			}
		}
	}
}
