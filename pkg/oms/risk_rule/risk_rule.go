package riskrule

import "github.com/joripage/matching-engine/pkg/orderbook"

// RiskRule is one pre-trade check. A non-nil error rejects the order.
type RiskRule interface {
	Check(order *orderbook.Order) error
}

// RiskRuleFunc adapts a plain function to RiskRule.
type RiskRuleFunc func(order *orderbook.Order) error

func (f RiskRuleFunc) Check(order *orderbook.Order) error {
	return f(order)
}

// Admission runs rules in order and stops at the first rejection. Rules that
// read the ledger must come before rules that read the book.
type Admission struct {
	rules []RiskRule
}

func NewAdmission(rules ...RiskRule) *Admission {
	return &Admission{rules: rules}
}

func (a *Admission) Append(rules ...RiskRule) {
	a.rules = append(a.rules, rules...)
}

func (a *Admission) Check(order *orderbook.Order) error {
	for _, r := range a.rules {
		if err := r.Check(order); err != nil {
			return err
		}
	}
	return nil
}
