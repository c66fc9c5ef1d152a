// Package xconf 基于 koanf 的配置加载。
//
// 支持 YAML/JSON 文件与字节数据，按 koanf 结构体标签反序列化，
// 并通过 fsnotify 监视文件变更自动重载。
//
//	cfg, err := xconf.New("/etc/marketguard/config.yaml")
//	var server ServerConfig
//	err = cfg.Unmarshal("server", &server)
//
// Unmarshal 只覆盖配置中存在的键，目标结构体预先填好的默认值会保留。
//
// # 热更新
//
//	w, _ := xconf.Watch(cfg, func(c xconf.Config, err error) { ... })
//	go w.Run(ctx) // ctx 取消后返回
//
// 注意：koanf 以 "." 作为键分隔符，map 的键不能包含 "."。
// 需要点号的场景（如路由路径、IP）应改用列表。
package xconf
