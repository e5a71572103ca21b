package analysis

import "strconv"

// 最小样本量：不足时不给出推荐
const MinSamples = 30

// 置信度换算系数。parity/overunder 的理论 edge 上限是 0.5，
// differs 的理论 edge 上限是 0.1，因此使用不同的缩放常数。
const (
	parityConfidenceScale  = 200.0
	differsConfidenceScale = 1000.0
	maxConfidence          = 100.0
)

// Kind 推荐的策略方向
type Kind string

const (
	KindEven    Kind = "EVEN"
	KindOdd     Kind = "ODD"
	KindOver    Kind = "OVER"
	KindUnder   Kind = "UNDER"
	KindDiffers Kind = "DIFFERS"
)

// DigitStats 10 槽位的末位数字出现计数器
type DigitStats struct {
	Counts [10]int
	Total  int
}

// Add 记录一个观察到的末位数字（0-9 之外忽略）
func (s *DigitStats) Add(digit int) {
	if digit < 0 || digit > 9 {
		return
	}
	s.Counts[digit]++
	s.Total++
}

// Reset 清空计数器
func (s *DigitStats) Reset() {
	*s = DigitStats{}
}

// Ready 样本量是否已达到推荐门槛
func (s *DigitStats) Ready() bool {
	return s.Total >= MinSamples
}

// Frequency 某个数字的出现频率
func (s *DigitStats) Frequency(digit int) float64 {
	if s.Total == 0 || digit < 0 || digit > 9 {
		return 0
	}
	return float64(s.Counts[digit]) / float64(s.Total)
}

// Recommendation 策略推荐
type Recommendation struct {
	Kind       Kind    // 推荐方向
	Digit      int     // OVER/UNDER 的 barrier 或 DIFFERS 的目标数字；其余为 -1
	Edge       float64 // 相对公平概率的偏差
	Confidence float64 // 置信度（0-100）
}

// Label 人类可读的推荐描述，如 "OVER:4"、"EVEN"
func (r Recommendation) Label() string {
	switch r.Kind {
	case KindOver, KindUnder, KindDiffers:
		return string(r.Kind) + ":" + strconv.Itoa(r.Digit)
	default:
		return string(r.Kind)
	}
}

// Analyze 对计数器做一次完整分析，返回 edge 最大的候选。
// 分析是确定性的：相同的计数向量永远产生相同的推荐。
// 样本不足时返回 (zero, false)。
//
// 平局约定：parity 偏向 EVEN，over/under 偏向 OVER，
// differs 取最小下标。
func Analyze(s *DigitStats) (Recommendation, bool) {
	if s == nil || !s.Ready() {
		return Recommendation{}, false
	}

	best := parityCandidate(s)
	if ou := overUnderCandidate(s); ou.Edge > best.Edge {
		best = ou
	}
	if df := differsCandidate(s); df.Edge > best.Edge {
		best = df
	}
	return best, true
}

// parityCandidate 奇偶候选：edge = |evenFrac - 0.5|
func parityCandidate(s *DigitStats) Recommendation {
	even := 0
	for d := 0; d <= 9; d += 2 {
		even += s.Counts[d]
	}
	evenFrac := float64(even) / float64(s.Total)
	oddFrac := 1 - evenFrac

	kind := KindOdd
	if evenFrac >= oddFrac {
		kind = KindEven
	}
	edge := evenFrac - 0.5
	if edge < 0 {
		edge = -edge
	}
	return Recommendation{
		Kind:       kind,
		Digit:      -1,
		Edge:       edge,
		Confidence: confidence(edge, parityConfidenceScale),
	}
}

// overUnderCandidate 大小候选：对每个 barrier 0-9，
// under/over 的比例在剔除 barrier 自身样本后计算，
// edge = max(underFrac, overFrac) - 0.5，取 edge 最大的 barrier。
func overUnderCandidate(s *DigitStats) Recommendation {
	best := Recommendation{Kind: KindOver, Digit: 0, Edge: -1}
	for barrier := 0; barrier <= 9; barrier++ {
		rest := s.Total - s.Counts[barrier]
		if rest == 0 {
			continue
		}
		under := 0
		for d := 0; d < barrier; d++ {
			under += s.Counts[d]
		}
		over := rest - under

		underFrac := float64(under) / float64(rest)
		overFrac := float64(over) / float64(rest)

		kind := KindUnder
		frac := underFrac
		if overFrac >= underFrac {
			kind = KindOver
			frac = overFrac
		}
		edge := frac - 0.5
		if edge > best.Edge {
			best = Recommendation{Kind: kind, Digit: barrier, Edge: edge}
		}
	}
	if best.Edge < 0 {
		best.Edge = 0
	}
	best.Confidence = confidence(best.Edge, parityConfidenceScale)
	return best
}

// differsCandidate DIFFERS 候选：出现最少的数字低于公平份额 10% 的缺口。
// 平局取最小下标。
func differsCandidate(s *DigitStats) Recommendation {
	minDigit := 0
	for d := 1; d <= 9; d++ {
		if s.Counts[d] < s.Counts[minDigit] {
			minDigit = d
		}
	}
	edge := 0.1 - s.Frequency(minDigit)
	if edge < 0 {
		edge = 0
	}
	return Recommendation{
		Kind:       KindDiffers,
		Digit:      minDigit,
		Edge:       edge,
		Confidence: confidence(edge, differsConfidenceScale),
	}
}

// confidence edge 的有界单调变换，封顶 100
func confidence(edge, scale float64) float64 {
	c := edge * scale
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
