package app

import (
	"context"
	"fmt"
	"swiftslice/internal/shared/observability"
	"time"
)

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) observability.HealthStatus {
	status := observability.HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	if s.app.slicer != nil {
		status.Components["slicer"] = "ok"
	} else {
		status.Status = "degraded"
		status.Components["slicer"] = "missing"
	}

	if s.app.store != nil {
		status.Components["slice_store"] = "ok"
	} else if s.app.Config.DB.Enabled {
		status.Status = "degraded"
		status.Components["slice_store"] = "missing but enabled in config"
	}

	if last, ok := s.app.LastResult(); ok {
		failed := 0
		for _, p := range last.Projects {
			if p.Err != nil {
				failed++
			}
		}
		status.Components["last_run"] = fmt.Sprintf("%s (%d projects, %d failed, %s)", last.RunID, len(last.Projects), failed, last.Duration.Round(time.Millisecond))
		if len(last.Projects) > 0 && failed == len(last.Projects) {
			status.Status = "degraded"
		}
	} else {
		status.Components["last_run"] = "pending"
	}

	s.app.stateMu.RLock()
	watching := s.app.activeWatcher != nil
	s.app.stateMu.RUnlock()
	if watching {
		status.Components["watcher"] = "ok"
	}

	return status
}
