package broadcast

import (
	"testing"

	"github.com/digitbot/godigit/internal/events"
)

func TestEmitDelivers(t *testing.T) {
	r := NewRegistry(4)
	sub := r.Subscribe("a")

	r.Emit(events.NewLog("info", "test", "hello"))

	select {
	case ev := <-sub.C:
		if ev.Kind != events.KindLog {
			t.Fatalf("期望 log 事件，实际 %s", ev.Kind)
		}
	default:
		t.Fatal("订阅者没收到事件")
	}
}

// 缓冲满时丢弃，Emit 永不阻塞
func TestEmitNeverBlocksOnFullBuffer(t *testing.T) {
	r := NewRegistry(1)
	sub := r.Subscribe("slow")

	// 第二条应被丢弃而不是阻塞
	r.Emit(events.NewLog("info", "test", "one"))
	r.Emit(events.NewLog("info", "test", "two"))

	if got := len(sub.C); got != 1 {
		t.Fatalf("缓冲 1 的订阅者应只留 1 条，实际 %d", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	r := NewRegistry(4)
	sub := r.Subscribe("a")
	r.Unsubscribe("a")

	if _, open := <-sub.C; open {
		t.Fatal("注销后 channel 应已关闭")
	}
	if r.Count() != 0 {
		t.Fatalf("注销后订阅者数应为 0，实际 %d", r.Count())
	}

	// 向已注销的注册表广播不应 panic
	r.Emit(events.NewLog("info", "test", "after"))
}

func TestResubscribeReplacesOld(t *testing.T) {
	r := NewRegistry(4)
	old := r.Subscribe("a")
	r.Subscribe("a")

	if _, open := <-old.C; open {
		t.Fatal("重复订阅同一 ID 时旧 channel 应被关闭")
	}
	if r.Count() != 1 {
		t.Fatalf("重复订阅不应增加数量，实际 %d", r.Count())
	}
}

// recent 环形缓冲封顶，留最新的
func TestRecentRetention(t *testing.T) {
	r := NewRegistry(4)
	for i := 0; i < 250; i++ {
		r.Emit(events.NewLog("info", "test", "m"))
	}
	got := r.Recent()
	if len(got) != 200 {
		t.Fatalf("recent 应封顶 200 条，实际 %d", len(got))
	}
}

func TestNilRegistryEmitIsNoop(t *testing.T) {
	var r *Registry
	r.Emit(events.NewLog("info", "test", "nil")) // 不应 panic
}
