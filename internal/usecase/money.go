package usecase

import "github.com/shopspring/decimal"

// JSONでは小数2桁の数値リテラル（20.00）として出す。
// floatを経由しないので丸め誤差は入らない。
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	return m.Decimal.UnmarshalJSON(b)
}
