package scheduler

import (
	"context"
	"fmt"
	"sync"

	conq "github.com/enriquebris/goconcurrentqueue"
	"github.com/go-faster/errors"
	"github.com/oqtopus-team/oqtopus-nonlocal/core"
	"go.uber.org/zap"
)

type fifo interface {
	Enqueue(*experimentInScheduler) error
	Dequeue() (*experimentInScheduler, error)
	DequeueOrWaitForNextElementContext(ctx context.Context) (*experimentInScheduler, error)
	GetLen() int
}

type conqFIFO struct {
	conq.FIFO
}

func newConqFIFO() *conqFIFO {
	return &conqFIFO{
		FIFO: *conq.NewFIFO(),
	}
}

func (c *conqFIFO) Enqueue(eis *experimentInScheduler) error {
	return c.FIFO.Enqueue(eis)
}

func (c *conqFIFO) Dequeue() (*experimentInScheduler, error) {
	tmp, err := c.FIFO.Dequeue()
	if err != nil {
		return nil, err
	}
	return tmp.(*experimentInScheduler), nil
}

func (c *conqFIFO) DequeueOrWaitForNextElementContext(ctx context.Context) (*experimentInScheduler, error) {
	tmp, err := c.FIFO.DequeueOrWaitForNextElementContext(ctx)
	if err != nil {
		return nil, err
	}
	return tmp.(*experimentInScheduler), nil
}

func (c *conqFIFO) GetLen() int {
	return c.FIFO.GetLen()
}

// NormalQueue is a bounded FIFO of experiments waiting for the oracle.
type NormalQueue struct {
	fifo    fifo
	maxSize int
	mu      sync.Mutex
}

func (n *NormalQueue) Setup(conf *core.Conf) error {
	if conf.QueueMaxSize < 0 {
		return errors.Wrapf(core.ErrInvalidArgument, "queue max size(%d) must not be negative", conf.QueueMaxSize)
	}
	n.maxSize = conf.QueueMaxSize
	n.fifo = newConqFIFO()
	return nil
}

// Put enqueues eis unless the queue already holds maxSize experiments.
// A zero maxSize means unbounded.
func (n *NormalQueue) Put(eis *experimentInScheduler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := eis.experiment.ID
	if n.maxSize > 0 && n.maxSize <= n.fifo.GetLen() {
		zap.L().Info(fmt.Sprintf("failed to put %s. Normal Queue is full.", id))
		return errors.Wrapf(core.ErrQueueFull, "max size %d", n.maxSize)
	}
	zap.L().Debug(fmt.Sprintf("putting %s to normalQueue", id))
	if err := n.fifo.Enqueue(eis); err != nil {
		zap.L().Error(fmt.Sprintf("failed to put %s to normalQueue. Reason:%s", id, err))
		return err
	}
	return nil
}

// Dequeue takes the oldest experiment. With wait it blocks until one arrives
// or ctx is done.
func (n *NormalQueue) Dequeue(ctx context.Context, wait bool) (eis *experimentInScheduler, err error) {
	if wait {
		eis, err = n.fifo.DequeueOrWaitForNextElementContext(ctx)
	} else {
		eis, err = n.fifo.Dequeue()
	}
	if err != nil {
		zap.L().Debug("no experiment in NormalQueue.", zap.Error(err))
		return nil, err
	}
	zap.L().Debug(fmt.Sprintf("dequeued experiment:%s", eis.experiment.ID))
	return eis, nil
}

func (n *NormalQueue) GetCurrentSize() int {
	return n.fifo.GetLen()
}
