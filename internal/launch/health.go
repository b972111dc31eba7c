package launch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"resty.dev/v3"

	"github.com/vk/fragmesh/internal/fmerr"
	"github.com/vk/fragmesh/internal/objstore"
	"github.com/vk/fragmesh/internal/piddb"
)

// healthProbeLimit bounds how many workers are probed at once.
const healthProbeLimit = 8

// WorkerHealth is the health snapshot of one recorded worker.
type WorkerHealth struct {
	Rank int
	PID  int
	// Alive reports whether the process exists.
	Alive bool
	// Healthy reports whether the worker's health endpoint answered.
	Healthy bool
	Detail  string
}

// CheckGroup probes every recorded worker of the group: first that its
// process is still running, then its health endpoint when one was
// configured. Probes run concurrently.
func (s *Supervisor) CheckGroup(ctx context.Context, objectID objstore.ObjectID, timeout time.Duration) ([]WorkerHealth, error) {
	recs, err := s.registry.List(objectID.String())
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmerr.Newf(fmerr.KindNotFound, "no workers recorded for %s", objectID)
	}

	client := resty.New().SetTimeout(timeout)
	defer client.Close()

	results := make([]WorkerHealth, len(recs))
	g := &errgroup.Group{}
	g.SetLimit(healthProbeLimit)
	for i, rec := range recs {
		g.Go(func() error {
			results[i] = checkWorker(ctx, client, rec)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func checkWorker(ctx context.Context, client *resty.Client, rec piddb.Record) WorkerHealth {
	h := WorkerHealth{Rank: rec.Rank, PID: rec.PID}
	if !ProcessAlive(rec.PID) {
		h.Detail = "process not running"
		return h
	}
	h.Alive = true

	if rec.HealthPort <= 0 {
		h.Detail = "no health port recorded"
		return h
	}
	url := fmt.Sprintf("http://127.0.0.1:%d/health", rec.HealthPort)
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		h.Detail = err.Error()
		return h
	}
	if !resp.IsSuccess() {
		h.Detail = fmt.Sprintf("health endpoint returned %d", resp.StatusCode())
		return h
	}
	h.Healthy = true
	return h
}
