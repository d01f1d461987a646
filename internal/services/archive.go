package services

import (
	"context"
	"errors"
	"sync"

	"sage/config"
	"sage/internal/export"
	"sage/internal/store"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type ArchiveJob struct {
	JobID     string
	SessionID string
	Tier      export.Tier
	Image     []byte
}

var (
	ErrArchiveShuttingDown = errors.New("service shutting down")
	ErrArchiveQueueFull    = errors.New("queue full")
)

// ArchiveService renders exports in the background and persists them through a
// store.Saver, telling the page over the hub when each job is done.
type ArchiveService struct {
	notifier Notifier
	saver    store.Saver

	queue chan ArchiveJob
	group errgroup.Group

	mu      sync.RWMutex
	closing bool
	running bool
	stopped chan struct{}
	ctx     context.Context
	log     *log.Logger
}

func NewArchiveService(ctx context.Context, notifier Notifier, saver store.Saver, config config.ExportConfig) *ArchiveService {
	s := &ArchiveService{
		notifier: notifier,
		saver:    saver,
		queue:    make(chan ArchiveJob, config.QueueSize),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		log:      log.With("component", "archive"),
	}
	s.group.SetLimit(config.MaxConcurrent)
	return s
}

func (a *ArchiveService) Run() {
	a.mu.Lock()
	if a.running || a.closing {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.mu.Unlock()

	go func() {
		defer close(a.stopped)
		for {
			select {
			case <-a.ctx.Done():
				return
			case job, ok := <-a.queue:
				if !ok {
					return
				}
				jobCopy := job
				a.group.Go(func() error {
					a.runJob(jobCopy)
					return nil
				})
			}
		}
	}()
}

func (a *ArchiveService) Enqueue(job ArchiveJob) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closing {
		return ErrArchiveShuttingDown
	}
	select {
	case a.queue <- job:
		return nil
	default:
		return ErrArchiveQueueFull
	}
}

func (a *ArchiveService) Shutdown() {
	a.mu.Lock()
	if !a.closing {
		a.closing = true
		close(a.queue)
	}
	running := a.running
	a.mu.Unlock()

	if running {
		<-a.stopped
	}
	_ = a.group.Wait()
}

// WS only emits completion/failure.
func (a *ArchiveService) runJob(job ArchiveJob) {
	if a.ctx.Err() != nil {
		return
	}
	logger := a.log.With("jobId", job.JobID, "session", job.SessionID, "tier", job.Tier)

	file, err := export.Export(job.Image, job.Tier)
	if err != nil {
		logger.Warn("export failed", "err", err)
		a.notifier.SendTo(job.SessionID, WSEvent{
			Type:      EventExportFailed,
			SessionID: job.SessionID,
			JobID:     job.JobID,
			Tier:      string(job.Tier),
			Message:   err.Error(),
		})
		return
	}

	path, err := a.saver.Save(a.ctx, store.SaveParams{
		Name:        file.Name,
		Data:        file.Data,
		ContentType: file.ContentType,
		Metadata: map[string]string{
			"session": job.SessionID,
			"tier":    string(job.Tier),
			"job":     job.JobID,
		},
	})
	if err != nil {
		logger.Warn("save failed", "err", err)
		a.notifier.SendTo(job.SessionID, WSEvent{
			Type:      EventExportFailed,
			SessionID: job.SessionID,
			JobID:     job.JobID,
			Tier:      string(job.Tier),
			Message:   err.Error(),
		})
		return
	}

	logger.Info("export archived", "path", path)
	a.notifier.SendTo(job.SessionID, WSEvent{
		Type:      EventExportCompleted,
		SessionID: job.SessionID,
		JobID:     job.JobID,
		Tier:      string(job.Tier),
		Message:   "export complete",
		Path:      path,
	})
}
