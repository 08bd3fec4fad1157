// internal/historian/historian.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/spyfall/internal/game"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// maxFlushAttempts is how many times one batch is written before it is
// dropped.
const maxFlushAttempts = 3

// Popper is the subset of a Redis client the historian reads with.
type Popper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Sink persists a batch of round records atomically.
type Sink interface {
	InsertRounds(ctx context.Context, recs []game.RoundRecord) error
}

// Service pops round records from a Redis list and writes them in batches.
type Service struct {
	src        Popper
	queue      string
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	popTimeout time.Duration
	log        *logrus.Entry

	batchMu  sync.Mutex
	batch    []game.RoundRecord
	failures int
}

// NewService returns a historian reading queue from src into sink.
func NewService(src Popper, queue string, sink Sink, batchSize int, flushDelay time.Duration, log *logrus.Entry) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		src:        src,
		queue:      queue,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		popTimeout: 3 * time.Second,
		log:        log.WithField("queue", queue),
		batch:      make([]game.RoundRecord, 0, batchSize),
	}
}

// Run pops until ctx is done, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	defer s.flush(context.Background())

	s.log.Info("historian started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("historian shutting down")
			return
		case <-ticker.C:
			s.flush(ctx)
		default:
			s.popOnce(ctx)
		}
	}
}

// popOnce waits up to popTimeout for one record.
func (s *Service) popOnce(ctx context.Context) {
	res, err := s.src.BLPop(ctx, s.popTimeout, s.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			s.log.Warnf("BLPop: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(s.flushDelay):
			}
		}
		return
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return
	}
	var rec game.RoundRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		s.log.Warnf("invalid round record: %v", err)
		return
	}
	s.append(ctx, rec)
}

func (s *Service) append(ctx context.Context, rec game.RoundRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.batchSize
	s.batchMu.Unlock()
	if full {
		s.flush(ctx)
	}
}

// flush writes the pending batch. A failed batch is kept for the next flush
// until it has failed maxFlushAttempts times, then dropped.
func (s *Service) flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink.InsertRounds(ctx, s.batch); err != nil {
		s.failures++
		if s.failures < maxFlushAttempts {
			s.log.Errorf("flushing %d rounds (attempt %d): %v", len(s.batch), s.failures, err)
			return
		}
		s.log.Errorf("dropping %d rounds after %d failed flushes: %v", len(s.batch), s.failures, err)
	} else {
		s.log.Debugf("flushed %d rounds", len(s.batch))
	}
	s.failures = 0
	s.batch = s.batch[:0]
}
