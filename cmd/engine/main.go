package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/joripage/matching-engine/config"
	"github.com/joripage/matching-engine/pkg/commander"
	redis_wrapper "github.com/joripage/matching-engine/pkg/infra/redis"
	kafkawrapper "github.com/joripage/matching-engine/pkg/kafka_wrapper"
	"github.com/joripage/matching-engine/pkg/logging"
	"github.com/joripage/matching-engine/pkg/oms"
	"github.com/joripage/matching-engine/pkg/publisher"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

func main() {
	var configFile, pprofAddr string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&pprofAddr, "pprof", "", "Serve pprof on this address when set")
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

	if pprofAddr != "" {
		go func() {
			_ = http.ListenAndServe(pprofAddr, nil)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	omsCfg, err := cfg.Engine.OMSConfig()
	if err != nil {
		logger.Fatal(ctx, "engine config", zap.Error(err))
	}

	opts := []oms.Option{oms.WithLogger(logger)}
	var closers []func()

	if cfg.Redis != nil {
		client, err := redis_wrapper.InitRedis(ctx, &cfg.Redis.RedisConfig)
		if err != nil {
			logger.Fatal(ctx, "init redis", zap.Error(err))
		}
		closers = append(closers, func() { _ = client.Close() })
		opts = append(opts, oms.WithTradeSinks(publisher.NewRedisSink(client, cfg.Redis.Sink)))
	}

	if cfg.Kafka != nil {
		producer := kafkawrapper.NewProducer(cfg.Kafka.Producer)
		closers = append(closers, func() { _ = producer.Close() })
		opts = append(opts, oms.WithTradeSinks(publisher.NewKafkaSink(producer, cfg.Kafka.TradeTopic)))
	}

	if cfg.Nats != nil {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			logger.Fatal(ctx, "connect nats", zap.Error(err))
		}
		closers = append(closers, func() { _ = nc.Drain() })
		js, err := nc.JetStream()
		if err != nil {
			logger.Fatal(ctx, "jetstream", zap.Error(err))
		}
		if err := publisher.EnsureStream(js); err != nil {
			logger.Fatal(ctx, "ensure stream", zap.Error(err))
		}
		opts = append(opts,
			oms.WithTradeSinks(publisher.NewNatsSink(js)),
			oms.WithOrderGateway(publisher.NewNatsOrderGateway(js, logger)))
	}

	engine, err := oms.NewOMS(omsCfg, opts...)
	if err != nil {
		logger.Fatal(ctx, "new oms", zap.Error(err))
	}

	for _, acc := range cfg.Accounts {
		if err := engine.CreateAccount(acc.Name, acc.USD, acc.Coin); err != nil {
			logger.Fatal(ctx, "create account", zap.String("account", acc.Name), zap.Error(err))
		}
	}
	if _, err := engine.Seed(ctx, cfg.SeedAddOrders()); err != nil {
		logger.Fatal(ctx, "seed orders", zap.Error(err))
	}

	if err := engine.Start(ctx); err != nil {
		logger.Fatal(ctx, "start oms", zap.Error(err))
	}

	cmdr := commander.New(engine, os.Stdout, logger.Named("commander"))
	go func() {
		if err := cmdr.Run(ctx, os.Stdin); err != nil {
			logger.Error(ctx, "commander stopped", zap.Error(err))
		}
	}()

	select {
	case <-sigs:
		fmt.Println()
		logger.Info(ctx, "signal received, shutting down")
		_ = engine.Shutdown(ctx)
	case <-engine.Done():
	}

	engine.Wait()
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	fmt.Println("Exited cleanly.")
}
