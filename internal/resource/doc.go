// Package resource 组合覆盖层解析器与解码资源缓存，作为一次引擎会话的资源入口。
//
// Manager 负责启动挂载（内置包优先级 0，随后按配置顺序挂载各包）、运行期热补丁
// 挂载、注入层以及按 tick 驱动的淘汰扫描。所有状态归属 Manager 实例，不存在
// 进程级单例。
package resource
