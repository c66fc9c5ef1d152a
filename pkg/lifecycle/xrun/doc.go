// Package xrun 管理进程内多个服务的并发运行与协调关闭。
//
// 基于 golang.org/x/sync/errgroup：任一服务返回错误或收到退出信号时，
// 其余服务通过 ctx 收到取消，[Run] 等待全部退出后返回第一个错误。
//
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//		xrun.Service{Name: "http", Run: xrun.HTTPServer(server, 10*time.Second)},
//		xrun.Service{Name: "config-watch", Run: watcher.Run},
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//		// 正常退出
//	}
package xrun
