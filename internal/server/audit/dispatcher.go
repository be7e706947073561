package audit

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	auditrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/audit"
)

// Dispatcher hands records to a background writer. Record blocks while the
// buffer is full and never drops a record; after Close it writes inline.
type Dispatcher struct {
	repo   auditrepo.Repository
	logger logging.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan *models.AuditRecord

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewDispatcher(repo auditrepo.Repository, logger logging.Logger, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}

	d := &Dispatcher{
		repo:   repo,
		logger: logger,
		ch:     make(chan *models.AuditRecord, bufferSize),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for record := range d.ch {
		write(context.Background(), d.repo, d.logger, record)
	}
}

func (d *Dispatcher) Record(ctx context.Context, record *models.AuditRecord) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		write(context.WithoutCancel(ctx), d.repo, d.logger, record)
		return
	}
	d.ch <- record
}

// Close stops accepting queued records and waits until the buffer has been
// written.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.ch)
		d.mu.Unlock()

		d.wg.Wait()
	})
}
