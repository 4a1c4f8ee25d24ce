package config

import (
	"fmt"
	"os"

	postgres_wrapper "github.com/joripage/matching-engine/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/matching-engine/pkg/infra/redis"
	kafkawrapper "github.com/joripage/matching-engine/pkg/kafka_wrapper"
	"github.com/joripage/matching-engine/pkg/oms"
	"github.com/joripage/matching-engine/pkg/oms/model"
	riskrule "github.com/joripage/matching-engine/pkg/oms/risk_rule"
	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/joripage/matching-engine/pkg/publisher"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	ServiceName string       `yaml:"service_name"`
	LogLevel    string       `yaml:"log_level"`
	Engine      EngineConfig `yaml:"engine"`

	Accounts   []AccountConfig `yaml:"accounts"`
	SeedOrders []OrderConfig   `yaml:"seed_orders"`

	Redis *RedisConfig                     `yaml:"redis"`
	Kafka *KafkaConfig                     `yaml:"kafka"`
	Nats  *NatsConfig                      `yaml:"nats"`
	OmsDB *postgres_wrapper.PostgresConfig `yaml:"oms_db"`
}

type EngineConfig struct {
	IDPolicy           string                    `yaml:"id_policy"`
	PriceFloor         decimal.Decimal           `yaml:"price_floor"`
	PriceCeil          decimal.Decimal           `yaml:"price_ceil"`
	TickSizes          []riskrule.TickSizeConfig `yaml:"tick_sizes"`
	TickSizeFile       string                    `yaml:"tick_size_file"`
	AllowPriceStacking bool                      `yaml:"allow_price_stacking"`
}

type AccountConfig struct {
	Name string          `yaml:"name"`
	USD  decimal.Decimal `yaml:"usd"`
	Coin int64           `yaml:"coin"`
}

type OrderConfig struct {
	Account string          `yaml:"account"`
	Side    orderbook.Side  `yaml:"side"`
	Qty     int64           `yaml:"qty"`
	Price   decimal.Decimal `yaml:"price"`
}

type RedisConfig struct {
	redis_wrapper.RedisConfig `yaml:",inline"`
	Sink                      publisher.RedisSinkConfig `yaml:"sink"`
}

type KafkaConfig struct {
	Producer   kafkawrapper.ProducerConfig `yaml:"producer"`
	TradeTopic string                      `yaml:"trade_topic"`
	Consumer   kafkawrapper.ConsumerConfig `yaml:"consumer"`
}

type NatsConfig struct {
	URL     string `yaml:"url"`
	Durable string `yaml:"durable"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	fields := []interface{}{
		"func",
		"config.readFromFile",
		"filePath",
		filePath,
	}

	sugar := zap.S().With(fields...)

	sugar.Debug("Load config...")
	zap.S().Debugf("CONFIG_FILE=%v", filePath)

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}

// OMSConfig builds the engine options, reading the tick size table from its
// own file when one is configured.
func (c *EngineConfig) OMSConfig() (oms.Config, error) {
	policy, err := orderbook.ParseIDPolicy(c.IDPolicy)
	if err != nil {
		return oms.Config{}, err
	}
	ticks := c.TickSizes
	if c.TickSizeFile != "" {
		fromFile, err := riskrule.LoadTickSizes(c.TickSizeFile)
		if err != nil {
			return oms.Config{}, fmt.Errorf("tick size file: %w", err)
		}
		ticks = append(ticks, fromFile...)
	}
	return oms.Config{
		IDPolicy:           policy,
		PriceFloor:         c.PriceFloor,
		PriceCeil:          c.PriceCeil,
		TickSizes:          ticks,
		AllowPriceStacking: c.AllowPriceStacking,
	}, nil
}

func (c *AppConfig) SeedAddOrders() []*model.AddOrder {
	out := make([]*model.AddOrder, 0, len(c.SeedOrders))
	for _, o := range c.SeedOrders {
		out = append(out, &model.AddOrder{
			Account:  o.Account,
			Side:     o.Side,
			Quantity: o.Qty,
			Price:    o.Price,
		})
	}
	return out
}
