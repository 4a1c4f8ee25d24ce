package riskrule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joripage/matching-engine/pkg/orderbook"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type TickSizeConfig struct {
	MaxPrice decimal.Decimal `json:"maxPrice" yaml:"max_price"` // 0 = no limit
	Step     decimal.Decimal `json:"step" yaml:"step"`
}

// TickSizeRule checks prices against a ladder of tick sizes, lowest band first.
type TickSizeRule struct {
	Config []TickSizeConfig
}

func NewTickSizeRule(cfg []TickSizeConfig) *TickSizeRule {
	return &TickSizeRule{Config: cfg}
}

// LoadTickSizes reads a tick size ladder, YAML for .yaml/.yml files and JSON
// otherwise.
func LoadTickSizes(path string) ([]TickSizeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg []TickSizeConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func NewTickSizeRuleFromFile(path string) (*TickSizeRule, error) {
	cfg, err := LoadTickSizes(path)
	if err != nil {
		return nil, err
	}
	return &TickSizeRule{Config: cfg}, nil
}

func (r *TickSizeRule) Check(order *orderbook.Order) error {
	for _, rule := range r.Config {
		if rule.MaxPrice.IsZero() || order.Price.LessThanOrEqual(rule.MaxPrice) {
			if !rule.Step.IsPositive() {
				return nil
			}
			if !order.Price.Mod(rule.Step).IsZero() {
				return fmt.Errorf("%w: %s is not a multiple of %s", ErrTickSize, order.Price, rule.Step)
			}
			return nil
		}
	}

	return nil
}
