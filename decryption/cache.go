// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package decryption resolves ciphertext handles to plaintext through a
// per-conversation cache backed by durable storage.
package decryption

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/luxfi/sealr/cache"
	"github.com/luxfi/sealr/crypto/fhe"
	"github.com/luxfi/sealr/storage"
)

const (
	DefaultBatchSize         = 10
	DefaultPartitionCapacity = 256
	DefaultPersistTimeout    = 10 * time.Second

	// DefaultPartition holds handles resolved without a conversation.
	DefaultPartition = "default"
)

type Config struct {
	// BatchSize is the maximum number of handles per decryption call.
	BatchSize int
	// PartitionCapacity bounds the number of conversations kept in memory.
	PartitionCapacity int
	// PersistTimeout bounds one background write.
	PersistTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PartitionCapacity <= 0 {
		c.PartitionCapacity = DefaultPartitionCapacity
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = DefaultPersistTimeout
	}
}

// Cache resolves handles to plaintext. Plaintexts are cached per
// conversation in memory and in storage; a handle is never decrypted twice
// once a result is cached. Cache entries do not depend on the signature used
// to obtain them.
type Cache struct {
	log      log.Logger
	instance fhe.Instance
	storage  storage.Storage
	metrics  *Metrics
	config   Config
	now      func() time.Time

	partitions *cache.FIFOCache[string, *partition]

	locksLock sync.Mutex
	locks     map[string]*sync.Mutex
	writers   map[string]*writer

	persistWG sync.WaitGroup
}

type partition struct {
	id      string
	entries map[fhe.Handle]string
}

// writer orders the background writes of one conversation. It outlives the
// in-memory partition so that a reloaded partition continues the same
// version sequence.
type writer struct {
	writeLock sync.Mutex

	lock      sync.Mutex
	issued    uint64
	persisted uint64
	// pending is the newest snapshot not yet known to be stored.
	pending map[fhe.Handle]string
}

// New returns a Cache. A nil store keeps plaintexts in memory only. Nil
// metrics are registered nowhere.
func New(
	logger log.Logger,
	instance fhe.Instance,
	store storage.Storage,
	metrics *Metrics,
	config Config,
) *Cache {
	config.setDefaults()
	if store == nil {
		store = storage.Noop{}
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Cache{
		log:        logger,
		instance:   instance,
		storage:    store,
		metrics:    metrics,
		config:     config,
		now:        time.Now,
		partitions: cache.NewFIFOCache[string, *partition](config.PartitionCapacity),
		locks:      make(map[string]*sync.Mutex),
		writers:    make(map[string]*writer),
	}
}

// Resolve returns the plaintext of every handle it could resolve, keyed by
// handle. Handles that could not be decrypted are logged and omitted.
// Concurrent calls for one conversation are serialized.
func (c *Cache) Resolve(
	ctx context.Context,
	conversationID string,
	contract common.Address,
	handles []fhe.Handle,
	sig *fhe.DecryptionSignature,
) (map[fhe.Handle]string, error) {
	key := partitionKey(conversationID)
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	part, err := c.partitions.Get(key, func(id string) (*partition, error) {
		return c.load(ctx, id), nil
	})
	if err != nil {
		return nil, err
	}

	results := make(map[fhe.Handle]string, len(handles))
	seen := set.NewSet[fhe.Handle](len(handles))
	var misses []fhe.Handle
	for _, h := range handles {
		if seen.Contains(h) {
			continue
		}
		seen.Add(h)
		if v, ok := part.entries[h]; ok {
			results[h] = v
		} else {
			misses = append(misses, h)
		}
	}
	c.metrics.cacheHits.Add(float64(len(results)))
	c.metrics.cacheMisses.Add(float64(len(misses)))
	if len(misses) == 0 {
		return results, nil
	}

	client, status, err := c.instance.Client()
	if client == nil || status != fhe.StatusReady {
		c.log.Warn(
			"Decryption service not ready, serving cached plaintexts only",
			zap.String("conversationID", key),
			zap.String("status", string(status)),
			zap.Int("numMisses", len(misses)),
			log.Err(err),
		)
		c.metrics.failedHandles.Add(float64(len(misses)))
		return results, nil
	}

	numBatches := (len(misses) + c.config.BatchSize - 1) / c.config.BatchSize
	batchResults := make([]map[fhe.Handle]string, numBatches)
	var wg sync.WaitGroup
	for i := 0; i < numBatches; i++ {
		batch := misses[i*c.config.BatchSize : min((i+1)*c.config.BatchSize, len(misses))]
		wg.Add(1)
		go func() {
			defer wg.Done()
			batchResults[i] = c.decryptBatch(ctx, client, contract, batch, sig)
		}()
	}
	wg.Wait()

	added := 0
	for i, batch := range batchResults {
		for _, h := range misses[i*c.config.BatchSize : min((i+1)*c.config.BatchSize, len(misses))] {
			v, ok := batch[h]
			if !ok {
				continue
			}
			if existing, ok := part.entries[h]; ok {
				v = existing
			} else {
				part.entries[h] = v
				added++
			}
			results[h] = v
		}
	}
	if added > 0 {
		c.persist(part)
	}
	return results, nil
}

// decryptBatch decrypts batch in one call. If the call fails, each handle is
// retried alone so that one bad handle does not hide the others.
func (c *Cache) decryptBatch(
	ctx context.Context,
	client fhe.Client,
	contract common.Address,
	batch []fhe.Handle,
	sig *fhe.DecryptionSignature,
) map[fhe.Handle]string {
	out, err := c.userDecrypt(ctx, client, contract, batch, sig)
	if err == nil {
		c.countMissing(batch, out)
		return out
	}
	if len(batch) == 1 {
		c.logFailure(batch[0], err)
		return nil
	}

	c.log.Debug(
		"Batch decryption failed, retrying handles individually",
		zap.Int("batchSize", len(batch)),
		log.Err(err),
	)
	out = make(map[fhe.Handle]string, len(batch))
	for _, h := range batch {
		single, err := c.userDecrypt(ctx, client, contract, []fhe.Handle{h}, sig)
		if err != nil {
			c.logFailure(h, err)
			continue
		}
		if v, ok := single[h]; ok {
			out[h] = v
		} else {
			c.metrics.failedHandles.Inc()
		}
	}
	return out
}

func (c *Cache) userDecrypt(
	ctx context.Context,
	client fhe.Client,
	contract common.Address,
	handles []fhe.Handle,
	sig *fhe.DecryptionSignature,
) (map[fhe.Handle]string, error) {
	pairs := make([]fhe.HandleContractPair, len(handles))
	for i, h := range handles {
		pairs[i] = fhe.HandleContractPair{Handle: h, Contract: contract}
	}
	start := c.now()
	out, err := client.UserDecrypt(ctx, pairs, sig)
	c.metrics.decryptBatchLatency.Observe(c.now().Sub(start).Seconds())
	return out, err
}

func (c *Cache) countMissing(batch []fhe.Handle, out map[fhe.Handle]string) {
	for _, h := range batch {
		if _, ok := out[h]; !ok {
			c.metrics.failedHandles.Inc()
		}
	}
}

func (c *Cache) logFailure(h fhe.Handle, err error) {
	c.metrics.failedHandles.Inc()
	c.log.Warn(
		"Failed to decrypt handle",
		zap.String("handle", h.Hex()),
		log.Err(err),
	)
}

// load reads a partition from storage, merged with any snapshot whose write
// is still pending. A storage failure yields the pending entries only.
func (c *Cache) load(ctx context.Context, id string) *partition {
	part := &partition{id: id, entries: make(map[fhe.Handle]string)}
	entries, _, err := LoadEntries(ctx, c.storage, id)
	switch {
	case err == nil:
		part.entries = entries
	case !errors.Is(err, storage.ErrNotFound):
		c.log.Warn(
			"Failed to load decryption cache, starting empty",
			zap.String("conversationID", id),
			log.Err(err),
		)
	}

	w := c.writerFor(id)
	w.lock.Lock()
	for h, v := range w.pending {
		if _, ok := part.entries[h]; !ok {
			part.entries[h] = v
		}
	}
	w.lock.Unlock()
	return part
}

// persist writes a snapshot of part in the background. Must be called with
// the partition's conversation lock held. Stored snapshots of one
// conversation never go backwards in version, across evictions included.
func (c *Cache) persist(part *partition) {
	snapshot := make(map[fhe.Handle]string, len(part.entries))
	for h, v := range part.entries {
		snapshot[h] = v
	}
	updatedAt := uint64(c.now().UnixMilli())

	w := c.writerFor(part.id)
	w.lock.Lock()
	w.issued++
	version := w.issued
	w.pending = snapshot
	w.lock.Unlock()

	c.persistWG.Add(1)
	go func() {
		defer c.persistWG.Done()

		w.writeLock.Lock()
		defer w.writeLock.Unlock()
		if !w.stale(version) && c.write(part.id, snapshot, updatedAt) {
			w.stored(version)
		}
	}()
}

func (c *Cache) write(id string, snapshot map[fhe.Handle]string, updatedAt uint64) bool {
	b, err := encodeRecord(id, snapshot, updatedAt)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.PersistTimeout)
		err = c.storage.Put(ctx, cacheStore, id, b)
		cancel()
	}
	if err != nil {
		c.metrics.failedPersists.Inc()
		c.log.Warn(
			"Failed to persist decryption cache",
			zap.String("conversationID", id),
			log.Err(err),
		)
		return false
	}
	return true
}

// stale reports whether a newer snapshot than version was already written.
func (w *writer) stale(version uint64) bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return version <= w.persisted
}

func (w *writer) stored(version uint64) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.persisted = version
	if version == w.issued {
		w.pending = nil
	}
}

// Close waits for background writes to finish.
func (c *Cache) Close() {
	c.persistWG.Wait()
}

// Forget drops the in-memory partition of conversationID. Its persisted
// entries are reloaded on next use.
func (c *Cache) Forget(conversationID string) {
	key := partitionKey(conversationID)
	mu := c.lockFor(key)
	mu.Lock()
	defer mu.Unlock()
	c.partitions.Remove(key)
}

func (c *Cache) writerFor(key string) *writer {
	c.locksLock.Lock()
	defer c.locksLock.Unlock()
	w, ok := c.writers[key]
	if !ok {
		w = new(writer)
		c.writers[key] = w
	}
	return w
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	c.locksLock.Lock()
	defer c.locksLock.Unlock()
	mu, ok := c.locks[key]
	if !ok {
		mu = new(sync.Mutex)
		c.locks[key] = mu
	}
	return mu
}
