package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"wellness-api/internal/config"
	gweb "wellness-api/internal/grpcweb"
	"wellness-api/internal/handler"
	"wellness-api/internal/invitation"
	"wellness-api/internal/logging"
	"wellness-api/internal/membership"
	"wellness-api/internal/middleware"
	"wellness-api/internal/scheduling"
	"wellness-api/internal/store"
	"wellness-api/internal/store/sqlite"
	"wellness-api/internal/telemetry"
	"wellness-api/internal/wire"
)

// recordStore is what the services need from either backend.
type recordStore interface {
	scheduling.Store
	invitation.Store
	membership.Store
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New(os.Stderr, "info", "json")
		bootLog.Fatal().Err(err).Msg("config")
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	// database
	st, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("store")
	}
	defer closeStore()

	engine := scheduling.New(st, scheduling.Config{PastGrace: cfg.PastBookingGrace, Logger: log})
	invites := invitation.New(st, invitation.Config{TTL: cfg.InvitationTTL, Logger: log})
	groups := membership.New(st, time.Now, log)
	h := handler.New(engine, invites, groups, cfg.LegacyExpiredFlag, log)

	// grpc server
	rl := middleware.NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)
	srv := grpc.NewServer(
		grpc.ForceServerCodec(wire.Codec{}),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.Logging(log),
			middleware.Recovery(log),
			middleware.RateLimit(rl),
			middleware.Auth(cfg.JWTSecret),
		),
		grpc.ChainStreamInterceptor(middleware.StreamAuth(cfg.JWTSecret)),
	)
	handler.Register(srv, h)
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, hs)

	lis, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Msg("grpc listening")
		if err := srv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
			stop()
		}
	}()

	// grpc-web bridge -> forwards browser requests to grpc on localhost
	bridge, err := gweb.New("localhost:"+cfg.Port,
		gweb.Options{AllowedOrigins: cfg.CORSOrigins, Logger: log},
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("bridge")
	}
	defer bridge.Close()

	httpSrv := &http.Server{
		Addr:              ":" + cfg.WebPort,
		Handler:           bridge.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("grpc-web listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http serve")
			stop()
		}
	}()

	// background db probe feeds the health service
	go watchStore(ctx, st, hs, log)

	// graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")
	hs.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	srv.GracefulStop()
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (recordStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite")
		return st, func() { st.Close() }, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("connected to postgres")
		return st, pool.Close, nil
	}
}

func watchStore(ctx context.Context, st recordStore, hs *health.Server, log zerolog.Logger) {
	t := time.NewTicker(15 * time.Second)
	defer t.Stop()
	serving := true
	for {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := st.Ping(pctx)
		cancel()
		if ctx.Err() != nil {
			return
		}
		switch {
		case err != nil && serving:
			log.Error().Err(err).Msg("store unreachable")
			hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			serving = false
		case err == nil && !serving:
			log.Info().Msg("store reachable again")
			hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
			serving = true
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
