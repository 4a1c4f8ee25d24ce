package main

import (
	"context"
	"encoding/json"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joripage/matching-engine/config"
	"github.com/joripage/matching-engine/pkg/infra"
	kafkawrapper "github.com/joripage/matching-engine/pkg/kafka_wrapper"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/oms/repo"
	"github.com/joripage/matching-engine/pkg/oms/worker"
	"github.com/joripage/matching-engine/pkg/publisher"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel))
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger.Zap())

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// init db, waiting for it to come up
	db, err := infra.GetMigrateTool().ConnectAndMigrate(cfg.OmsDB, "file://migration/sql")
	if err != nil {
		logger.Fatal(ctx, "init db", zap.Error(err))
	}

	w := worker.NewWorker(repo.NewRepo(db), logger.Named("worker"))
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Nats != nil {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			logger.Fatal(ctx, "connect nats", zap.Error(err))
		}
		defer func() { _ = nc.Drain() }()

		js, err := nc.JetStream()
		if err != nil {
			logger.Fatal(ctx, "jetstream", zap.Error(err))
		}
		if err := publisher.EnsureStream(js); err != nil {
			logger.Fatal(ctx, "ensure stream", zap.Error(err))
		}

		g.Go(func() error {
			return w.StartConsumer(ctx, js, publisher.TradeSubject, cfg.Nats.Durable+"_trades", w.HandleTrades)
		})
		g.Go(func() error {
			return w.StartConsumer(ctx, js, publisher.OrderEventsSubject, cfg.Nats.Durable+"_orders", w.HandleOrderEvents)
		})
	}

	if cfg.Kafka != nil && len(cfg.Kafka.Consumer.Brokers) > 0 {
		cg := kafkawrapper.NewConsumerGroup(cfg.Kafka.Consumer)
		defer func() { _ = cg.Close() }()
		g.Go(func() error {
			return w.RunKafka(ctx, cg)
		})
	}

	logger.Info(ctx, "worker started")
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error(ctx, "worker stopped", zap.Error(err))
	}
	logger.Info(context.Background(), "worker exited")
}
