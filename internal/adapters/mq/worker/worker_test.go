package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/stemai/internal/adapters/mq/queue"
	worker "github.com/okian/stemai/internal/adapters/mq/worker"
	model "github.com/okian/stemai/internal/domain/model"
	logging "github.com/okian/stemai/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	tasks chan model.Task
}

func newMockQueue() *mockQueue {
	return &mockQueue{tasks: make(chan model.Task, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.Task { return mq.tasks }

func (mq *mockQueue) Close() error {
	close(mq.tasks)
	return nil
}

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
}

func (r *recorder) Process(_ context.Context, t model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, t.JobID)
	return r.fail[t.JobID]
}

func (r *recorder) processed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func init() {
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a queue", t, func() {
		q := newMockQueue()
		rec := &recorder{fail: map[string]error{"bad": errors.New("decode failed")}}
		w := worker.NewInMemoryWorker(q, rec, worker.WithName("w-test"))

		convey.Convey("When tasks arrive and the queue closes", func() {
			q.tasks <- model.Task{JobID: "a"}
			q.tasks <- model.Task{JobID: "bad"}
			q.tasks <- model.Task{JobID: "b"}
			_ = q.Close()

			w.Run(context.Background())

			convey.Convey("Then every task is processed even after a failure", func() {
				convey.So(rec.processed(), convey.ShouldResemble, []string{"a", "bad", "b"})
			})

			convey.Convey("Then Shutdown returns immediately", func() {
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the processor panics", func() {
			pw := worker.NewInMemoryWorker(q, worker.ProcessorFunc(func(context.Context, model.Task) error {
				panic("boom")
			}))
			q.tasks <- model.Task{JobID: "p"}
			_ = q.Close()

			convey.Convey("Then the worker survives and exits cleanly", func() {
				convey.So(func() { pw.Run(context.Background()) }, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			go w.Run(ctx)
			cancel()

			convey.Convey("Then Shutdown completes", func() {
				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		rec := &recorder{}
		pool := worker.NewPool(3, q, rec)
		convey.So(pool.Size(), convey.ShouldEqual, 3)

		pool.Start(context.Background())
		for _, id := range []string{"1", "2", "3", "4", "5"} {
			convey.So(q.Enqueue(context.Background(), model.Task{JobID: id}), convey.ShouldBeTrue)
		}

		convey.Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then queued tasks are drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(rec.processed(), convey.ShouldHaveLength, 5)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a pool stuck on a slow task", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		started := make(chan struct{})
		pool := worker.NewPool(1, q, worker.ProcessorFunc(func(ctx context.Context, _ model.Task) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}))
		pool.Start(context.Background())
		q.Enqueue(context.Background(), model.Task{JobID: "slow"})
		<-started

		convey.Convey("Then an expired shutdown context cancels it", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(ctx)
			convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
		})
	})
}
