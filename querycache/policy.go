package querycache

import "time"

const DefaultTTL = 5 * time.Minute

// Policy decides how long data of each entity stays fresh.
type Policy struct {
	Default   time.Duration
	PerEntity map[string]time.Duration
}

func (p Policy) TTL(entity string) time.Duration {
	if ttl, ok := p.PerEntity[entity]; ok && ttl > 0 {
		return ttl
	}
	if p.Default > 0 {
		return p.Default
	}
	return DefaultTTL
}
