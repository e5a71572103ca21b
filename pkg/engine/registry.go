package engine

import (
	"fmt"
	"sort"
	"sync"
)

var (
	// factories 已注册的模块工厂
	factories   = make(map[string]func() Module)
	factoriesMu sync.RWMutex
)

// Register 注册模块工厂
// 模块包在 init() 中调用；重复注册视为编程错误，直接 panic。
func Register(id string, factory func() Module) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if _, exists := factories[id]; exists {
		panic(fmt.Errorf("module %s already registered", id))
	}
	factories[id] = factory
}

// NewModule 按 ID 创建模块实例
func NewModule(id string) (Module, error) {
	factoriesMu.RLock()
	factory, exists := factories[id]
	factoriesMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("module %s not found (registered: %v)", id, RegisteredIDs())
	}
	return factory(), nil
}

// RegisteredIDs 返回已注册的模块 ID（排序后）
func RegisteredIDs() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
