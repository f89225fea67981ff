// Package redisq is a self-hosted dispatch queue for deployments without a
// managed push queue. Job references sit on a redis list; a worker loop moves
// them onto a processing list, delivers to the processor in-process and
// removes them only after the outcome is decided. Delivery stays
// at-least-once: a retryable failure parks the reference in a delayed set
// that Run promotes when due, and references orphaned on the processing list
// by a crash are recovered on the next start.
package redisq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/AliNMackie/cofound-platform/internal/domain/jobs"
)

// Handler processes one delivered reference. A nil return acknowledges; any
// error requeues with backoff up to the delivery ceiling.
type Handler interface {
	Deliver(ctx context.Context, ref domain.Ref) error
}

type Dispatcher struct {
	rdb         *redis.Client
	key         string
	handler     Handler
	maxDeliver  int
	backoffBase time.Duration
}

type envelope struct {
	Ref        domain.Ref `json:"ref"`
	Deliveries int        `json:"deliveries"`
}

func New(rdb *redis.Client, key string, handler Handler, maxDeliver int, backoffBase time.Duration) *Dispatcher {
	if key == "" {
		key = "dispatch:pending"
	}
	if maxDeliver <= 0 {
		maxDeliver = 10
	}
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	return &Dispatcher{rdb: rdb, key: key, handler: handler, maxDeliver: maxDeliver, backoffBase: backoffBase}
}

func (d *Dispatcher) processingKey() string { return d.key + ":processing" }
func (d *Dispatcher) delayedKey() string    { return d.key + ":delayed" }

// Enqueue implements domain.Dispatcher.
func (d *Dispatcher) Enqueue(ctx context.Context, ref domain.Ref) (domain.Receipt, error) {
	data, err := json.Marshal(envelope{Ref: ref})
	if err != nil {
		return domain.Receipt{}, err
	}
	if err := d.rdb.LPush(ctx, d.key, data).Err(); err != nil {
		return domain.Receipt{}, fmt.Errorf("%w: %v", domain.ErrQueueUnavailable, err)
	}
	return domain.Receipt{
		TaskName:   fmt.Sprintf("%s/%s", d.key, ref.JobID),
		EnqueuedAt: time.Now(),
	}, nil
}

// Run consumes the pending list until ctx is done. Call from a dedicated
// goroutine. References left on the processing list by a previous crash are
// requeued before consumption starts.
func (d *Dispatcher) Run(ctx context.Context) {
	d.recoverOrphans(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		d.promoteDue(ctx)

		raw, err := d.rdb.BLMove(ctx, d.key, d.processingKey(), "RIGHT", "LEFT", time.Second).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err != redis.Nil {
				log.Printf("redisq: pop error: %v", err)
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
			}
			continue
		}
		d.deliver(ctx, raw)
	}
}

// deliver handles one reference taken from the processing list. The in-flight
// copy is removed only after the outcome is persisted, so a crash at any point
// leaves the reference recoverable and duplicates at worst.
func (d *Dispatcher) deliver(ctx context.Context, raw string) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		log.Printf("redisq: dropping malformed envelope: %v", err)
		d.rdb.LRem(ctx, d.processingKey(), 1, raw)
		return
	}
	env.Deliveries++

	err := d.handler.Deliver(ctx, env.Ref)
	switch {
	case err == nil:
	case env.Deliveries >= d.maxDeliver:
		log.Printf("redisq: job=%s exhausted %d deliveries: %v", env.Ref.JobID, env.Deliveries, err)
	default:
		delay := d.backoffBase * time.Duration(1<<uint(env.Deliveries-1))
		data, merr := json.Marshal(env)
		if merr != nil {
			return
		}
		due := float64(time.Now().Add(delay).UnixMilli())
		if zerr := d.rdb.ZAdd(ctx, d.delayedKey(), redis.Z{Score: due, Member: string(data)}).Err(); zerr != nil {
			// The in-flight copy stays on the processing list and is
			// recovered on the next start.
			log.Printf("redisq: park failed for job=%s: %v", env.Ref.JobID, zerr)
			return
		}
		log.Printf("redisq: job=%s delivery %d failed, retrying in %s: %v", env.Ref.JobID, env.Deliveries, delay, err)
	}

	d.rdb.LRem(ctx, d.processingKey(), 1, raw)
}

// promoteDue moves delayed references whose fire time has passed back onto
// the pending list. ZRem gates the move so concurrent workers promote each
// reference once.
func (d *Dispatcher) promoteDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	members, err := d.rdb.ZRangeByScore(ctx, d.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return
	}
	for _, m := range members {
		removed, err := d.rdb.ZRem(ctx, d.delayedKey(), m).Result()
		if err != nil || removed == 0 {
			continue
		}
		if perr := d.rdb.LPush(ctx, d.key, m).Err(); perr != nil {
			log.Printf("redisq: promote failed: %v", perr)
		}
	}
}

func (d *Dispatcher) recoverOrphans(ctx context.Context) {
	n := 0
	for {
		_, err := d.rdb.LMove(ctx, d.processingKey(), d.key, "RIGHT", "LEFT").Result()
		if err != nil {
			break
		}
		n++
	}
	if n > 0 {
		log.Printf("redisq: requeued %d orphaned deliveries", n)
	}
}

// Check reports queue reachability for the health endpoint.
func (d *Dispatcher) Check(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}
