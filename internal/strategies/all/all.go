package all

// 统一导入所有内置策略以触发 init() 注册。
// 这样 cmd/bot/main.go 只需要导入这一处，新增策略时不再修改入口代码。

import (
	_ "github.com/digitbot/godigit/internal/strategies/digitdiff"
	_ "github.com/digitbot/godigit/internal/strategies/goalseek"
	_ "github.com/digitbot/godigit/internal/strategies/mixologist"
	_ "github.com/digitbot/godigit/internal/strategies/overunder"
	_ "github.com/digitbot/godigit/internal/strategies/parity"
)
