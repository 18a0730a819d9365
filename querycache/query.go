package querycache

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/internal/metrics"
)

// Endpoint describes one cacheable read. Tags names what a result provides.
type Endpoint[P any, T any] struct {
	Name   string
	Entity string
	Fetch  func(ctx context.Context, params P) (T, error)
	Tags   func(params P, data T) []Tag
}

// Result is what a query hands back. On error Data still holds the last good
// value when there is one, with Stale set.
type Result[T any] struct {
	Data      T
	Err       error
	Stale     bool
	FromCache bool
}

// Query serves params from the cache when fresh and otherwise fetches, with
// concurrent callers for the same key sharing a single fetch. The fetch is
// detached from ctx: a caller that gives up gets ctx.Err() while the result
// still lands in the cache.
func Query[P any, T any](ctx context.Context, c *Cache, ep Endpoint[P, T], params P) Result[T] {
	key, err := Key(ep.Name, params)
	if err != nil {
		return Result[T]{Err: err}
	}

	cached, found, fresh := c.lookup(key)
	if fresh {
		c.hits.Add(1)
		metrics.CacheLookups.WithLabelValues(ep.Name, "hit").Inc()
		return Result[T]{Data: cached.Data.(T), FromCache: true}
	}
	if found && cached.HasData {
		metrics.CacheLookups.WithLabelValues(ep.Name, "stale").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(ep.Name, "miss").Inc()
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key, func() (any, error) {
		start := c.begin(key, ep.Name)

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		data, err := ep.Fetch(fetchCtx, params)
		if err != nil {
			c.fail(key, err)
			return nil, err
		}
		var tags []Tag
		if ep.Tags != nil {
			tags = ep.Tags(params, data)
		}
		c.complete(key, ep.Name, start, data, tags, c.policy.TTL(ep.Entity))
		return data, nil
	})

	select {
	case <-ctx.Done():
		return lastKnown[T](c, key, ctx.Err())
	case res := <-ch:
		if res.Shared {
			c.coalesced.Add(1)
			metrics.CacheLookups.WithLabelValues(ep.Name, "coalesced").Inc()
		}
		if res.Err != nil {
			c.errs.Add(1)
			metrics.CacheLookups.WithLabelValues(ep.Name, "error").Inc()
			log.Debug().Err(res.Err).Str("endpoint", ep.Name).Msg("query fetch failed")
			return lastKnown[T](c, key, res.Err)
		}
		return Result[T]{Data: res.Val.(T)}
	}
}

// lastKnown implements stale-while-error. A rejected credential ends the
// session, so nothing cached under it is handed out.
func lastKnown[T any](c *Cache, key string, err error) Result[T] {
	if apiclient.IsKind(err, apiclient.Unauthorized) {
		return Result[T]{Err: err}
	}
	e, ok := c.Entry(key)
	if !ok || !e.HasData {
		return Result[T]{Err: err}
	}
	data, _ := e.Data.(T)
	return Result[T]{Data: data, Err: err, Stale: true, FromCache: true}
}

// Mutation describes one write. Invalidates lists the tags to drop after a
// successful call.
type Mutation[I any, R any] struct {
	Name        string
	Do          func(ctx context.Context, input I) (R, error)
	Invalidates func(input I, result R) []Tag
}

// Mutate runs the mutation and, on success only, invalidates its tags.
func Mutate[I any, R any](ctx context.Context, c *Cache, m Mutation[I, R], input I) (R, error) {
	result, err := m.Do(ctx, input)
	if err != nil {
		return result, err
	}
	if m.Invalidates != nil {
		c.invalidate(m.Name, m.Invalidates(input, result))
	}
	return result, nil
}
