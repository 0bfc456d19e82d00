package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcHandler "github.com/anthanhphan/go-dhash-replication/internal/dhash/adapter/inbound/grpc"
	httpHandler "github.com/anthanhphan/go-dhash-replication/internal/dhash/adapter/inbound/http"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/adapter/outbound/badger"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/adapter/outbound/lsm"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/adapter/outbound/memstore"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/adapter/outbound/redisstore"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/config"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/port"
	"github.com/anthanhphan/go-dhash-replication/internal/dhash/service"
	"github.com/anthanhphan/go-dhash-replication/pkg/gossip"
	"github.com/anthanhphan/go-dhash-replication/pkg/idgen"
	"github.com/anthanhphan/go-dhash-replication/pkg/merkle"
	"github.com/anthanhphan/go-dhash-replication/pkg/resilience"
	"github.com/anthanhphan/go-dhash-replication/pkg/shard"
	"github.com/anthanhphan/gosdk/logger"
)

var (
	_ port.MembershipPort = (*gossip.Membership)(nil)
	_ port.Router         = (*shard.Router)(nil)
)

type App struct {
	cfg        *config.Config
	grpcServer *grpc.Server
	httpServer *httpHandler.Server
	membership port.MembershipPort
	store      port.BlockStore
	client     *grpcHandler.ClientAdapter
	service    *service.ReplicatedService
	redis      redis.UniversalClient
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	nodeID := cfg.Server.NodeID
	if nodeID == "" {
		host, _ := os.Hostname()
		nodeID = fmt.Sprintf("%s-%d", host, cfg.Server.Port)
	}
	position, err := shard.PositionFor(nodeID, cfg.Server.Position)
	if err != nil {
		return nil, fmt.Errorf("invalid ring position: %w", err)
	}

	a := &App{cfg: cfg}
	if cfg.Storage.Engine == config.EngineRedis || cfg.Blocks.VersionClock == config.ClockRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// 3. Storage Engine
	a.store, err = openStore(cfg, a.redis)
	if err != nil {
		a.abort()
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 4. Membership ring and gossip
	ring := shard.NewRing()
	membership, err := gossip.NewMembership(
		shard.Node{ID: nodeID, Position: position},
		cfg.Server.Hostname, cfg.Gossip.Port, cfg.Server.Port, ring)
	if err != nil {
		a.abort()
		return nil, fmt.Errorf("failed to init gossip: %w", err)
	}
	a.membership = membership
	router := shard.NewRouter(ring, a.membership.LocalNode(), cfg.Replication.Replicas)

	// 5. Replication Client
	a.client = grpcHandler.NewClientAdapter(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Replication.BreakerFailures,
		OpenTimeout:      cfg.Replication.BreakerOpen(),
		OnStateChange: func(peer string, state resilience.CircuitBreakerState) {
			logger.Warnw("Peer circuit changed state", "peer", peer, "state", string(state))
		},
	})

	// 6. Replication service
	index, err := merkle.NewTree(cfg.Merkle)
	if err != nil {
		a.abort()
		return nil, fmt.Errorf("failed to init merkle index: %w", err)
	}
	stamper, err := newStamper(cfg, nodeID, a.redis)
	if err != nil {
		a.abort()
		return nil, err
	}
	a.service, err = service.NewReplicatedService(a.store, a.client, router, index, service.Options{
		Kind:            cfg.Blocks.Kind,
		Interval:        cfg.Replication.Interval(),
		RefreshInterval: cfg.Replication.RefreshInterval(),
		Workers:         cfg.Replication.Workers,
		Stamper:         stamper,
	})
	if err != nil {
		a.abort()
		return nil, fmt.Errorf("failed to init replication service: %w", err)
	}

	// 7. gRPC and admin servers
	a.grpcServer = grpcHandler.NewGRPCServer(grpcHandler.NewServer(a.service))
	a.httpServer = httpHandler.NewServer(cfg.Server.HTTPAddr, a.service)

	a.membership.OnChange(func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Replication.RPCTimeout())
			defer cancel()
			if err := a.service.RefreshReplicas(ctx); err != nil {
				logger.Warnw("Replica refresh after membership change failed", "error", err.Error())
			}
		}()
	})

	return a, nil
}

func openStore(cfg *config.Config, client redis.UniversalClient) (port.BlockStore, error) {
	switch cfg.Storage.Engine {
	case config.EngineLSM:
		return lsm.NewLSMAdapter(cfg.Storage)
	case config.EngineBadger:
		return badger.Open(cfg.Storage.DataDir, cfg.Storage.FSync)
	case config.EngineRedis:
		return redisstore.New(client, cfg.Storage.RedisPrefix), nil
	case config.EngineMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.Engine)
	}
}

func newStamper(cfg *config.Config, nodeID string, client redis.UniversalClient) (*idgen.Stamper, error) {
	var clock idgen.Clock = &idgen.SystemClock{}
	if cfg.Blocks.VersionClock == config.ClockRedis {
		clock = idgen.NewRedisClock(client, 0)
	}
	stamper, err := idgen.New(idgen.NodeIDFor(nodeID), clock)
	if err != nil {
		return nil, fmt.Errorf("failed to init version stamper: %w", err)
	}
	return stamper, nil
}

func (a *App) Run() error {
	// Rebuild the index before serving peers so the first digests are right.
	rebuildCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	err := a.service.Rebuild(rebuildCtx)
	cancel()
	if err != nil {
		a.abort()
		return fmt.Errorf("failed to rebuild merkle index: %w", err)
	}

	a.join()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		a.abort()
		return fmt.Errorf("failed to listen on port %d: %w", a.cfg.Server.Port, err)
	}

	logger.Infow("Replication node starting",
		"id", a.membership.LocalNode().ID,
		"position", a.membership.LocalNode().Position.String(),
		"port", a.cfg.Server.Port,
		"http", a.cfg.Server.HTTPAddr,
		"gossip", a.cfg.Gossip.Port,
		"engine", a.cfg.Storage.Engine,
		"kind", string(a.cfg.Blocks.Kind))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.httpServer.Start(); err != nil && !strings.Contains(err.Error(), "server is not running") {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	})

	a.service.Start(a.cfg.Replication.RandomizeFirstTick)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down replication node")
		a.service.Stop()
		if err := a.membership.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
		a.grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			logger.Warnw("Admin server shutdown failed", "error", err.Error())
		}
		return nil
	})

	runErr := g.Wait()
	if runErr != nil {
		logger.Errorw("Replication node exited unexpectedly", "error", runErr.Error())
	}
	a.close()
	return runErr
}

// join contacts the configured seeds, skipping this node's own address.
func (a *App) join() {
	seeds := make([]string, 0, len(a.cfg.Gossip.Seeds))
	selfSeedSuffix := fmt.Sprintf(":%d", a.cfg.Gossip.Port)
	for _, seed := range a.cfg.Gossip.Seeds {
		if seed == "" {
			continue
		}
		if strings.HasSuffix(seed, selfSeedSuffix) && strings.Contains(seed, a.cfg.Server.Hostname) {
			continue
		}
		seeds = append(seeds, seed)
	}
	if len(seeds) == 0 {
		return
	}

	var joinErr error
	for i := 0; i < 5; i++ {
		joinErr = a.membership.Join(seeds)
		if joinErr == nil {
			return
		}
		logger.Warnw("Failed to join cluster, retrying...", "attempt", i+1, "error", joinErr.Error())
		time.Sleep(2 * time.Second)
	}
	logger.Errorw("Failed to join cluster after retries", "error", joinErr.Error())
}

// abort releases whatever New or Run acquired before the node started
// serving, gossip included.
func (a *App) abort() {
	if a.membership != nil {
		if err := a.membership.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
	}
	a.close()
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnw("Block store close failed", "error", err.Error())
		}
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			logger.Warnw("Replication client close failed", "error", err.Error())
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
