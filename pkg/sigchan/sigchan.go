package sigchan

// Chan 边沿触发的信号 channel：只表达“发生过”，不携带数据。
// 缓冲满时 Emit 直接丢弃，多次触发合并为一次唤醒
// （重连这类幂等动作要的就是这个语义）。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel
func New(bufferSize int) *Chan {
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 触发信号，永不阻塞
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 供 select 消费的接收端
func (c *Chan) C() <-chan struct{} {
	return c.c
}
