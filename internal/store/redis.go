package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultWaitTimeout = 2 * time.Second

// RedisStore keeps each document as a JSON string value.
//
// Durability is enforced after the write with WAIT (replica acks) and
// WAITAOF (fsync acks). Replicas is the configured replica count of the
// deployment; majorities are computed from it.
type RedisStore struct {
	rdb         *redis.Client
	replicas    int
	waitTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, replicas int, waitTimeout time.Duration) *RedisStore {
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	if replicas < 0 {
		replicas = 0
	}
	return &RedisStore{rdb: rdb, replicas: replicas, waitTimeout: waitTimeout}
}

func userKey(tenant, username string) string {
	return "tenant:" + url.QueryEscape(tenant) + ":users:" + url.QueryEscape(username)
}

func bookingKey(tenant, id string) string {
	return "tenant:" + url.QueryEscape(tenant) + ":bookings:" + url.QueryEscape(id)
}

func (s *RedisStore) CreateUser(ctx context.Context, u User, d Durability) error {
	if err := validateWrite(u.Tenant, u.Username, d); err != nil {
		return err
	}
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	var set *redis.BoolCmd
	return s.writeDurably(ctx, d,
		func(p redis.Pipeliner) redis.Cmder {
			set = p.SetNX(ctx, userKey(u.Tenant, u.Username), doc, 0)
			return set
		},
		func() error {
			if !set.Val() {
				return ErrAlreadyExists
			}
			return nil
		})
}

func (s *RedisStore) GetUser(ctx context.Context, tenant, username string) (User, error) {
	var u User
	if err := s.get(ctx, userKey(tenant, username), &u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *RedisStore) ReplaceUser(ctx context.Context, u User, d Durability) error {
	if err := validateWrite(u.Tenant, u.Username, d); err != nil {
		return err
	}
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	var set *redis.BoolCmd
	return s.writeDurably(ctx, d,
		func(p redis.Pipeliner) redis.Cmder {
			set = p.SetXX(ctx, userKey(u.Tenant, u.Username), doc, 0)
			return set
		},
		func() error {
			if !set.Val() {
				return ErrNotFound
			}
			return nil
		})
}

func (s *RedisStore) PutBooking(ctx context.Context, b Booking, d Durability) error {
	if err := validateWrite(b.Tenant, b.ID, d); err != nil {
		return err
	}
	doc, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode booking: %w", err)
	}
	return s.writeDurably(ctx, d,
		func(p redis.Pipeliner) redis.Cmder {
			return p.Set(ctx, bookingKey(b.Tenant, b.ID), doc, 0)
		},
		nil)
}

func (s *RedisStore) GetBooking(ctx context.Context, tenant, id string) (Booking, error) {
	var b Booking
	if err := s.get(ctx, bookingKey(tenant, id), &b); err != nil {
		return Booking{}, err
	}
	return b, nil
}

func (s *RedisStore) get(ctx context.Context, key string, out any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("redis error: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// ackPlan is what a durability level asks of the server after a write.
type ackPlan struct {
	replicas     int  // replica acks required
	fsyncLocal   bool // active node must fsync its AOF
	fsyncReplica bool // the replica acks must be fsynced too
}

func planAcks(d Durability, replicas int) ackPlan {
	majority := majorityReplicas(replicas)
	switch d {
	case DurabilityMajority:
		return ackPlan{replicas: majority}
	case DurabilityMajorityAndPersistToActive:
		return ackPlan{replicas: majority, fsyncLocal: true}
	case DurabilityPersistToMajority:
		return ackPlan{replicas: majority, fsyncLocal: true, fsyncReplica: true}
	default:
		return ackPlan{}
	}
}

// writeDurably sends the write and its WAIT/WAITAOF in one pipeline so they
// share a connection; both commands only count writes made on their own
// connection. applied inspects the write reply before durability is judged.
func (s *RedisStore) writeDurably(ctx context.Context, d Durability, write func(p redis.Pipeliner) redis.Cmder, applied func() error) error {
	plan := planAcks(d, s.replicas)
	numReplicas := 0
	if plan.fsyncReplica {
		numReplicas = plan.replicas
	}

	var (
		writeCmd redis.Cmder
		waitCmd  *redis.IntCmd
		aofCmd   *redis.Cmd
	)
	// Per-command errors are inspected below.
	_, _ = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		writeCmd = write(p)
		if plan.replicas > 0 && !plan.fsyncReplica {
			waitCmd = p.Wait(ctx, plan.replicas, s.waitTimeout)
		}
		if plan.fsyncLocal {
			aofCmd = p.Do(ctx, "WAITAOF", 1, numReplicas, s.waitTimeout.Milliseconds())
		}
		return nil
	})

	if err := writeCmd.Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if applied != nil {
		if err := applied(); err != nil {
			return err
		}
	}

	if waitCmd != nil {
		n, err := waitCmd.Result()
		if err != nil {
			return fmt.Errorf("%w: wait: %v", ErrDurabilityUnsatisfied, err)
		}
		if err := checkReplicaAcks(n, plan.replicas); err != nil {
			return err
		}
	}
	if aofCmd != nil {
		acks, err := aofCmd.Int64Slice()
		if err != nil {
			return fmt.Errorf("%w: waitaof: %v", ErrDurabilityUnsatisfied, err)
		}
		if err := checkFsyncAcks(acks, numReplicas); err != nil {
			return err
		}
	}
	return nil
}

// checkReplicaAcks judges a WAIT reply.
func checkReplicaAcks(n int64, want int) error {
	if n < int64(want) {
		return fmt.Errorf("%w: %d of %d replicas acknowledged", ErrDurabilityUnsatisfied, n, want)
	}
	return nil
}

// checkFsyncAcks judges a WAITAOF reply: [local fsyncs, replica fsyncs].
func checkFsyncAcks(acks []int64, wantReplicas int) error {
	if len(acks) != 2 || acks[0] < 1 || acks[1] < int64(wantReplicas) {
		return fmt.Errorf("%w: fsync acks %v, want local 1 replicas %d", ErrDurabilityUnsatisfied, acks, wantReplicas)
	}
	return nil
}
