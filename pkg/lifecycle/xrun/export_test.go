package xrun

import "os"

// withSignalChannel 测试中以通道代替真实信号
func withSignalChannel(c <-chan os.Signal) Option {
	return func(o *groupOptions) {
		o.sigCh = c
	}
}
