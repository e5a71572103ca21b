package analysis

import (
	"testing"
	"testing/quick"
)

func statsOf(counts [10]int) *DigitStats {
	s := &DigitStats{Counts: counts}
	for _, c := range counts {
		s.Total += c
	}
	return s
}

// 样本不足不给推荐
func TestAnalyzeRequiresMinSamples(t *testing.T) {
	s := &DigitStats{}
	for i := 0; i < MinSamples-1; i++ {
		s.Add(i % 10)
	}
	if _, ok := Analyze(s); ok {
		t.Fatal("样本不足时不应给出推荐")
	}
	s.Add(0)
	if _, ok := Analyze(s); !ok {
		t.Fatal("样本达到门槛后应给出推荐")
	}
}

// 场景：计数 [0,0,0,0,0,0,0,0,0,30]（全部是 9）→ DIFFERS 推荐
// 出现最少的数字，平局取最小下标，即 digit 0
func TestAnalyzeSkewedToOneDigit(t *testing.T) {
	rec, ok := Analyze(statsOf([10]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 30}))
	if !ok {
		t.Fatal("30 个样本应给出推荐")
	}
	// 这个分布下 over/under edge 为 0（剔除 barrier 后全部在一侧的只有
	// barrier=9 的 under 侧为空），奇偶 edge 0.5，differs edge 0.1。
	// 最大 edge 是奇偶（全部是 9，奇数占 1.0）
	if rec.Kind != KindOdd {
		t.Fatalf("全 9 分布下奇偶 edge 最大，期望 ODD，实际 %s", rec.Kind)
	}
}

// 10 个样本全部是 9：DIFFERS 候选取出现最少的数字
// （0-8 计数全为 0，平局取最小下标 0）
func TestDiffersCandidateSkewed(t *testing.T) {
	rec := differsCandidate(statsOf([10]int{0, 0, 0, 0, 0, 0, 0, 0, 0, 10}))
	if rec.Kind != KindDiffers || rec.Digit != 0 {
		t.Fatalf("期望 DIFFERS:0，实际 %s:%d", rec.Kind, rec.Digit)
	}
	if rec.Edge != 0.1 {
		t.Fatalf("从未出现的数字 edge 应为 0.1，实际 %f", rec.Edge)
	}
}

// DIFFERS 候选：出现最少的数字，平局取最小下标
func TestDiffersCandidateTieBreak(t *testing.T) {
	// 数字 3 和 7 都没出现过 → 取 3
	rec := differsCandidate(statsOf([10]int{4, 4, 4, 0, 4, 4, 4, 0, 3, 3}))
	if rec.Kind != KindDiffers || rec.Digit != 3 {
		t.Fatalf("平局应取最小下标 3，实际 %s:%d", rec.Kind, rec.Digit)
	}
}

// 奇偶平局偏向 EVEN
func TestParityCandidateTieBreak(t *testing.T) {
	rec := parityCandidate(statsOf([10]int{3, 3, 3, 3, 3, 3, 3, 3, 3, 3}))
	if rec.Kind != KindEven {
		t.Fatalf("奇偶各半时偏向 EVEN，实际 %s", rec.Kind)
	}
	if rec.Edge != 0 {
		t.Fatalf("均匀分布 edge 应为 0，实际 %f", rec.Edge)
	}
}

// over/under 平局偏向 OVER
func TestOverUnderTieBreak(t *testing.T) {
	rec := overUnderCandidate(statsOf([10]int{3, 3, 3, 3, 3, 3, 3, 3, 3, 3}))
	if rec.Kind != KindOver {
		t.Fatalf("均匀分布时 over/under 偏向 OVER，实际 %s", rec.Kind)
	}
}

// 明显偏高的分布 → OVER 推荐
func TestAnalyzeOverHeavy(t *testing.T) {
	// 数字 5-9 占 90%
	rec, ok := Analyze(statsOf([10]int{1, 1, 1, 1, 2, 10, 10, 10, 12, 12}))
	if !ok {
		t.Fatal("应给出推荐")
	}
	if rec.Kind != KindOver {
		t.Fatalf("高位数字占优，期望 OVER，实际 %s:%d", rec.Kind, rec.Digit)
	}
	if rec.Confidence <= 0 || rec.Confidence > 100 {
		t.Fatalf("置信度越界: %f", rec.Confidence)
	}
}

// 属性：分析是确定性的 —— 相同计数向量永远产生相同推荐
func TestProperty_AnalyzeDeterministic(t *testing.T) {
	property := func(raw [10]uint8) bool {
		var counts [10]int
		for i, v := range raw {
			counts[i] = int(v)
		}
		s1, s2 := statsOf(counts), statsOf(counts)
		r1, ok1 := Analyze(s1)
		r2, ok2 := Analyze(s2)
		if ok1 != ok2 {
			return false
		}
		if !ok1 {
			return true
		}
		return r1.Kind == r2.Kind && r1.Digit == r2.Digit &&
			r1.Edge == r2.Edge && r1.Confidence == r2.Confidence
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatal(err)
	}
}

// 属性：置信度始终在 [0, 100]
func TestProperty_ConfidenceBounded(t *testing.T) {
	property := func(raw [10]uint8) bool {
		var counts [10]int
		for i, v := range raw {
			counts[i] = int(v)
		}
		rec, ok := Analyze(statsOf(counts))
		if !ok {
			return true
		}
		return rec.Confidence >= 0 && rec.Confidence <= 100
	}
	if err := quick.Check(property, &quick.Config{MaxCount: 500}); err != nil {
		t.Fatal(err)
	}
}

func TestDigitStatsAddIgnoresOutOfRange(t *testing.T) {
	s := &DigitStats{}
	s.Add(-1)
	s.Add(10)
	if s.Total != 0 {
		t.Fatalf("越界数字不应计数，Total=%d", s.Total)
	}
}
