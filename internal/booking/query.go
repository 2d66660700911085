package booking

import (
	"context"
	"sort"
	"sync"

	"dentsched/internal/model"
)

// QueryRequest asks which providers are free for a branch/date/time.
type QueryRequest struct {
	Branch          string
	Date            string
	Time            string
	DurationMinutes int
	Strategy        Strategy
}

// FindAvailableProviders validates the requested slot against every active
// doctor and staff member and returns those who pass, sorted by provider id.
// Provider checks run concurrently under a bounded pool. A single provider
// failing its check (store hiccup, malformed document) is logged and treated
// as unavailable; only the initial provider-list fetch can fail the call.
func (v *Validator) FindAvailableProviders(ctx context.Context, req QueryRequest) ([]model.Provider, error) {
	providers, err := v.store.ListProviders(ctx, []string{model.RoleDoctor, model.RoleStaff})
	if err != nil {
		return nil, err
	}

	var (
		mu        sync.Mutex
		available []model.Provider
		wg        sync.WaitGroup
	)
	sem := make(chan struct{}, v.config.MaxConcurrentChecks)

	for _, p := range providers {
		wg.Add(1)
		go func(p model.Provider) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			decision, err := v.ValidateAppointment(ctx, Request{
				ProviderID:      p.ID,
				Branch:          req.Branch,
				Date:            req.Date,
				Time:            req.Time,
				DurationMinutes: req.DurationMinutes,
				Strategy:        req.Strategy,
			})
			if err != nil {
				if v.logger != nil {
					v.logger.Warn().Err(err).Str("provider_id", p.ID).
						Msg("provider availability check failed; treating as unavailable")
				}
				return
			}
			if !decision.Valid {
				return
			}

			mu.Lock()
			available = append(available, p)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	sort.Slice(available, func(i, j int) bool {
		return available[i].ID < available[j].ID
	})
	return available, nil
}
