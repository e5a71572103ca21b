package domain

import (
	"github.com/shopspring/decimal"
)

// Money 金额值对象（精确十进制）
//
// 所有 stake/profit 计算必须走 Money，禁止 float64 进入记账路径：
// 二进制浮点在 0.01 粒度的累加上会产生不可接受的误差。
type Money struct {
	d decimal.Decimal
}

// Zero 零值金额
var Zero = Money{}

// MoneyFromString 从字符串创建金额（例如 "1.00"）
func MoneyFromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{d: d}, nil
}

// MustMoney 从字符串创建金额，解析失败则 panic（仅用于常量和测试）
func MustMoney(s string) Money {
	m, err := MoneyFromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MoneyFromFloat 从 float64 创建金额，四舍五入到分
// 仅在协议边界使用（venue 返回的 JSON 数字），内部不做浮点运算
func MoneyFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f).Round(2)}
}

// Add 金额相加
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub 金额相减
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// MulFloat 金额乘以系数，四舍五入到分（马丁格尔加倍用）
func (m Money) MulFloat(factor float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(factor)).Round(2)}
}

// Neg 取负
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Cmp 比较：-1 / 0 / 1
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// GreaterThanOrEqual m >= other
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.d.GreaterThanOrEqual(other.d)
}

// LessThanOrEqual m <= other
func (m Money) LessThanOrEqual(other Money) bool {
	return m.d.LessThanOrEqual(other.d)
}

// IsPositive m > 0
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// IsNegative m < 0
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsZero m == 0
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// Equal 精确相等
func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// Float64 转为 float64（仅用于协议编码和展示，不回流记账）
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String 两位小数的字符串表示
func (m Money) String() string {
	return m.d.StringFixed(2)
}
