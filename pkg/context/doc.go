// Package context 提供请求上下文相关的子包。
//
// 子包列表：
//   - xctx: Context 增强，注入/提取请求身份（用户、组织）与追踪信息
//
// 设计原则：
//   - 所有上下文信息通过 context.Context 传递，不使用全局变量
//   - 认证由上游完成，这里只做存取
package context
