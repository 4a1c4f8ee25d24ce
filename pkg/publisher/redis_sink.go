package publisher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/joripage/matching-engine/pkg/ledger"
	"github.com/redis/go-redis/v9"
)

// publishTradeScript appends a trade to the stream once. Retried publishes of
// the same trade id are dropped by the marker key.
var publishTradeScript = redis.NewScript(`
	if redis.call("SET", KEYS[1], "1", "NX", "EX", ARGV[1]) == false then
		return 0
	end
	local fields = {}
	for i = 3, #ARGV do fields[#fields + 1] = ARGV[i] end
	redis.call("XADD", KEYS[2], "MAXLEN", "~", ARGV[2], "*", unpack(fields))
	redis.call("HSET", KEYS[3], unpack(fields))
	return 1
`)

type RedisSinkConfig struct {
	Stream    string        `yaml:"stream"`
	LastTrade string        `yaml:"last_trade_key"`
	MaxLen    int64         `yaml:"max_len"`
	DedupeTTL time.Duration `yaml:"dedupe_ttl"`
}

// RedisSink writes each transaction to a Redis stream and keeps the latest
// one in a hash.
type RedisSink struct {
	client redis.Scripter
	cfg    RedisSinkConfig
}

func NewRedisSink(client redis.Scripter, cfg RedisSinkConfig) *RedisSink {
	if cfg.Stream == "" {
		cfg.Stream = "engine:trades"
	}
	if cfg.LastTrade == "" {
		cfg.LastTrade = cfg.Stream + ":last"
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = 100_000
	}
	if cfg.DedupeTTL == 0 {
		cfg.DedupeTTL = time.Hour
	}
	return &RedisSink{client: client, cfg: cfg}
}

func (s *RedisSink) Name() string {
	return "redis"
}

func (s *RedisSink) Publish(ctx context.Context, tx ledger.Transaction) error {
	keys := []string{s.markerKey(tx.ID), s.cfg.Stream, s.cfg.LastTrade}
	args := append([]any{int64(s.cfg.DedupeTTL.Seconds()), s.cfg.MaxLen}, tradeFields(tx)...)
	if err := publishTradeScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis publish trade %d: %w", tx.ID, err)
	}
	return nil
}

func (s *RedisSink) markerKey(id int64) string {
	return s.cfg.Stream + ":published:" + strconv.FormatInt(id, 10)
}

// tradeFields flattens a transaction into stream field/value pairs.
func tradeFields(tx ledger.Transaction) []any {
	return []any{
		"id", strconv.FormatInt(tx.ID, 10),
		"qty", strconv.FormatInt(tx.Qty, 10),
		"price", tx.Price.String(),
		"buyer", tx.Buyer,
		"seller", tx.Seller,
		"aggressor", tx.Aggressor.String(),
		"buy_order_id", tx.BuyOrderID.String(),
		"sell_order_id", tx.SellOrderID.String(),
		"timestamp", tx.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
