package broadcast

import (
	"expvar"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/digitbot/godigit/internal/events"
)

var log = logrus.WithField("component", "broadcast")

// sinkDrops 被丢弃的事件计数（订阅者缓冲满）
var sinkDrops = expvar.NewInt("sink_drops")

// Subscriber 一个事件订阅者（带缓冲 channel）
type Subscriber struct {
	ID string
	C  chan events.Event
}

// Registry 显式持有的订阅者注册表（Event Sink 实现）
//
// 进程启动时创建一次、按引用传入，不做包级全局。
// Emit 非阻塞：订阅者缓冲满时静默丢弃该订阅者的这条事件，
// 绝不反压引擎。
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	bufferSize  int

	// recent 最近事件环形缓冲（控制面 /api/events 用）
	recent    []events.Event
	recentCap int
}

// NewRegistry 创建订阅者注册表
func NewRegistry(bufferSize int) *Registry {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Registry{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
		recentCap:   200,
	}
}

// Subscribe 注册订阅者，返回其事件 channel
func (r *Registry) Subscribe(id string) *Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.subscribers[id]; ok {
		close(old.C)
	}
	sub := &Subscriber{ID: id, C: make(chan events.Event, r.bufferSize)}
	r.subscribers[id] = sub
	return sub
}

// Unsubscribe 注销订阅者并关闭其 channel
func (r *Registry) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subscribers[id]; ok {
		delete(r.subscribers, id)
		close(sub.C)
	}
}

// Emit 广播事件（非阻塞，尽力而为）
func (r *Registry) Emit(ev events.Event) {
	if r == nil {
		return
	}

	r.mu.Lock()
	r.recent = append(r.recent, ev)
	if len(r.recent) > r.recentCap {
		r.recent = r.recent[len(r.recent)-r.recentCap:]
	}
	subs := make([]*Subscriber, 0, len(r.subscribers))
	for _, s := range r.subscribers {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.C <- ev:
		default:
			// 订阅者消费太慢，丢弃（不阻塞引擎）
			sinkDrops.Add(1)
			log.Debugf("订阅者 %s 缓冲已满，丢弃事件 kind=%s", sub.ID, ev.Kind)
		}
	}
}

// Recent 返回最近事件的快照（新到旧不排序，按到达顺序）
func (r *Registry) Recent() []events.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]events.Event, len(r.recent))
	copy(out, r.recent)
	return out
}

// Count 当前订阅者数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}
