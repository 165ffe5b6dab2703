package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter 每个客户端 IP 一个令牌桶，长时间不活跃的 IP 会被清理
type IPLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewIPLimiter 每个 IP 每分钟 perMinute 次，突发量相同
// perMinute <= 0 返回 nil，表示不限流
func NewIPLimiter(perMinute int) *IPLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &IPLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

// Allow 判断该 IP 是否还能发起请求，nil 限流器总是放行
func (l *IPLimiter) Allow(ip string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Len 当前记录的 IP 数量
func (l *IPLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}
