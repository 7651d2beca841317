package cache

import (
	"math"
	"time"
)

// TTLPolicy 以 tick 为单位决定条目是否过期。
type TTLPolicy struct {
	ttlTicks int64
}

// NewTTLPolicy 将秒级 TTL 换算为 tick（四舍五入），非零 TTL 至少为 1 tick。
func NewTTLPolicy(ttl time.Duration, ticksPerSecond int) TTLPolicy {
	if ttl <= 0 || ticksPerSecond <= 0 {
		return TTLPolicy{}
	}
	ticks := int64(math.Round(ttl.Seconds() * float64(ticksPerSecond)))
	if ticks < 1 {
		ticks = 1
	}
	return TTLPolicy{ttlTicks: ticks}
}

// TTLTicks 直接以 tick 数构造策略，负数视为 0。
func TTLTicks(ticks int64) TTLPolicy {
	if ticks < 0 {
		ticks = 0
	}
	return TTLPolicy{ttlTicks: ticks}
}

// Ticks 返回 TTL 对应的 tick 数。
func (p TTLPolicy) Ticks() int64 {
	return p.ttlTicks
}

// Immediate 表示 TTL 为 0：引用归零即销毁，不经过 sweep。
func (p TTLPolicy) Immediate() bool {
	return p.ttlTicks == 0
}

// Expired 判断闲置时间是否超过 TTL；恰好等于 TTL 时不过期。
func (p TTLPolicy) Expired(lastAccess, now int64) bool {
	return now-lastAccess > p.ttlTicks
}
