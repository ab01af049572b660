// Package rate 提供求解器进程的启动节流闸门（golang.org/x/time/rate 令牌桶）。
package rate

import (
	"context"
	"fmt"
	"time"

	xrate "golang.org/x/time/rate"

	"rtkbatch/pkg/contract"
)

// Limits: 启动节流配置。PerMinute 为 0 表示不限。
type Limits struct {
	PerMinute int // 每分钟最多启动的进程数
	Burst     int // 允许的瞬时突发；<=0 时取 1
}

// Gate: 启动闸门（并发安全）。
type Gate interface {
	// Wait: 阻塞直到放行或 ctx 取消。
	Wait(ctx context.Context) error
	// Try: 非阻塞尝试；不足时返回 false。
	Try() bool
}

// Snapshoter: 可选诊断接口。
type Snapshoter interface {
	// Snapshot 返回当前可用令牌数（向下取整）。
	Snapshot() int
}

// Validate 检查配置形状。
func (l Limits) Validate() error {
	if l.PerMinute < 0 || l.Burst < 0 {
		return fmt.Errorf("%w: rate limits must be >= 0", contract.ErrInvalidInput)
	}
	return nil
}

// NewGate 从静态配置构造闸门；PerMinute 为 0 时返回始终放行的闸门。
func NewGate(l Limits) Gate {
	if l.PerMinute <= 0 {
		return open{}
	}
	burst := l.Burst
	if burst <= 0 {
		burst = 1
	}
	every := time.Minute / time.Duration(l.PerMinute)
	return &gate{lim: xrate.NewLimiter(xrate.Every(every), burst)}
}

type gate struct {
	lim *xrate.Limiter
}

func (g *gate) Wait(ctx context.Context) error { return g.lim.Wait(ctx) }

func (g *gate) Try() bool { return g.lim.Allow() }

func (g *gate) Snapshot() int { return int(g.lim.Tokens()) }

// open: 不限流。
type open struct{}

func (open) Wait(ctx context.Context) error { return ctx.Err() }

func (open) Try() bool { return true }
