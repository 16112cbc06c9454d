package dispatch

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/cliproom/cliproom/services/processor"
)

// Source is one clip stream staged for an operation. The dispatcher owns the
// body from the moment the operation starts and closes it when the exchange
// settles, so releasing the clip underneath a running operation is safe.
type Source struct {
	Name string
	Body io.ReadCloser
}

func (s Source) File() processor.File {
	return processor.File{Name: s.Name, Reader: s.Body}
}

type Dispatcher struct {
	client  *processor.Client
	timeout time.Duration
	logger  zerolog.Logger
}

func NewDispatcher(client *processor.Client, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		client:  client,
		timeout: timeout,
		logger:  log.With().Str("component", "dispatch").Logger(),
	}
}

// StartConvert ships a clip off for grayscale conversion. A nil bounds
// converts the whole clip.
func (d *Dispatcher) StartConvert(source Source, bounds *processor.Bounds) *Task[*processor.ProcessResult] {
	return d.start(KindConvert, []Source{source}, func(ctx context.Context) (*processor.ProcessResult, error) {
		return d.client.Convert(ctx, source.File(), bounds)
	})
}

// StartTrim ships a clip off to be cut down to the window.
func (d *Dispatcher) StartTrim(source Source, bounds processor.Bounds) *Task[*processor.ProcessResult] {
	return d.start(KindTrim, []Source{source}, func(ctx context.Context) (*processor.ProcessResult, error) {
		return d.client.Trim(ctx, source.File(), bounds)
	})
}

// StartMerge ships the clips off to be concatenated in the given order.
func (d *Dispatcher) StartMerge(sources []Source) *Task[*processor.ProcessResult] {
	return d.start(KindMerge, sources, func(ctx context.Context) (*processor.ProcessResult, error) {
		files := lo.Map(sources, func(s Source, _ int) processor.File {
			return s.File()
		})
		return d.client.Merge(ctx, files)
	})
}

func (d *Dispatcher) start(kind Kind, sources []Source, call func(ctx context.Context) (*processor.ProcessResult, error)) *Task[*processor.ProcessResult] {
	task := newTask[*processor.ProcessResult](kind)
	d.logger.Info().Str("op", task.ID).Msg("dispatching operation")

	go func() {
		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}

		started := time.Now()
		result, err := call(ctx)
		closeAll(sources)
		if err != nil {
			d.logger.Warn().Str("op", task.ID).Err(err).Msg("operation failed")
		} else {
			d.logger.Info().Str("op", task.ID).Str("file", result.FileID).Dur("took", time.Since(started)).Msg("operation finished")
		}
		task.resolve(result, err)
	}()

	return task
}

func closeAll(sources []Source) {
	for _, s := range sources {
		if s.Body != nil {
			_ = s.Body.Close()
		}
	}
}
