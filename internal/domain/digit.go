package domain

import (
	"strings"
)

// Tick 一次行情更新
type Tick struct {
	Quote string // venue 下发的报价字符串（保留原始精度）
	Epoch int64  // Unix 秒时间戳
}

// LastDigit 取报价字符串的最后一位数字（0-9）
//
// venue 的报价按 instrument 的 pip 精度格式化，统计口径就是
// 字符串表示的最后一个字符；非数字结尾（异常数据）返回 -1。
func (t Tick) LastDigit() int {
	return LastDigitOf(t.Quote)
}

// LastDigitOf 从报价字符串提取最后一位数字，非法输入返回 -1
func LastDigitOf(quote string) int {
	q := strings.TrimSpace(quote)
	if q == "" {
		return -1
	}
	c := q[len(q)-1]
	if c < '0' || c > '9' {
		return -1
	}
	return int(c - '0')
}
