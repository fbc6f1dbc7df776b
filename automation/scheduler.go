// Package automation runs recurring campaign guards on cron schedules.
// The only built-in guard pauses a campaign once its spend for the
// current window exceeds a cap.
package automation

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	robcron "github.com/robfig/cron/v3"

	"github.com/adpilot-ai/adpilot/platform"
)

const maxRecordedRuns = 100

// Guard is a recurring budget check on one campaign.
type Guard struct {
	Name       string    `json:"name"`
	CampaignID string    `json:"campaign_id"`
	AccountID  string    `json:"account_id"`
	CronExpr   string    `json:"cron_expr"`
	MaxSpend   float64   `json:"max_spend"`
	Enabled    bool      `json:"enabled"`
	NextRun    time.Time `json:"next_run,omitempty"`
}

// GuardRun records one evaluation of a guard.
type GuardRun struct {
	StartedAt time.Time `json:"started_at"`
	Spend     float64   `json:"spend"`
	Paused    bool      `json:"paused"`
	Error     string    `json:"error,omitempty"`
}

type managedGuard struct {
	Guard
	entryID robcron.EntryID
	runs    []GuardRun
}

// Scheduler manages budget guards using cron expressions.
type Scheduler struct {
	mu      sync.RWMutex
	cron    *robcron.Cron
	guards  map[string]*managedGuard
	client  *platform.Client
	started bool
}

func NewScheduler(client *platform.Client) *Scheduler {
	return &Scheduler{
		cron:   robcron.New(),
		guards: make(map[string]*managedGuard),
		client: client,
	}
}

// Add registers a budget guard. Returns an error on a duplicate name or
// an invalid cron expression.
func (s *Scheduler) Add(guard Guard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if guard.Name == "" {
		return fmt.Errorf("guard name is required")
	}
	if guard.CampaignID == "" || guard.AccountID == "" {
		return fmt.Errorf("guard campaign_id and account_id are required")
	}
	if guard.MaxSpend <= 0 {
		return fmt.Errorf("guard max_spend must be positive")
	}
	if _, exists := s.guards[guard.Name]; exists {
		return fmt.Errorf("guard %q already exists", guard.Name)
	}

	name := guard.Name
	entryID, err := s.cron.AddFunc(guard.CronExpr, func() {
		s.evaluate(name)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", guard.CronExpr, err)
	}

	guard.Enabled = true
	mg := &managedGuard{Guard: guard, entryID: entryID}
	if entry := s.cron.Entry(entryID); !entry.Next.IsZero() {
		mg.NextRun = entry.Next
	}
	s.guards[name] = mg
	return nil
}

// Remove deletes a guard by name.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mg, ok := s.guards[name]
	if !ok {
		return fmt.Errorf("guard %q not found", name)
	}
	s.cron.Remove(mg.entryID)
	delete(s.guards, name)
	return nil
}

// Guards lists registered guards sorted by name.
func (s *Scheduler) Guards() []Guard {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Guard, 0, len(s.guards))
	for _, mg := range s.guards {
		g := mg.Guard
		if entry := s.cron.Entry(mg.entryID); !entry.Next.IsZero() {
			g.NextRun = entry.Next
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Runs returns the recorded evaluations of a guard, newest first.
func (s *Scheduler) Runs(name string) []GuardRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mg, ok := s.guards[name]
	if !ok {
		return nil
	}
	out := make([]GuardRun, len(mg.runs))
	copy(out, mg.runs)
	return out
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cron.Stop()
	s.started = false
}

// evaluate runs one guard: fetch today's spend, pause the campaign if it
// exceeds the cap, record the outcome.
func (s *Scheduler) evaluate(name string) {
	s.mu.RLock()
	mg, ok := s.guards[name]
	s.mu.RUnlock()
	if !ok || !mg.Enabled {
		return
	}

	run := GuardRun{StartedAt: time.Now().UTC()}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.client.MetricsReport(ctx, platform.ReportQuery{
		AccountID:  mg.AccountID,
		CampaignID: mg.CampaignID,
		Days:       1,
	})
	if err != nil {
		run.Error = err.Error()
		s.record(name, run)
		return
	}
	for _, r := range rows {
		run.Spend += r.Spend
	}

	if run.Spend > mg.MaxSpend {
		if _, err := s.client.UpdateCampaign(ctx, mg.CampaignID, platform.CampaignPatch{Status: "paused"}); err != nil {
			run.Error = err.Error()
		} else {
			run.Paused = true
			log.Printf("automation: paused campaign %s, spend %.2f exceeded cap %.2f", mg.CampaignID, run.Spend, mg.MaxSpend)
		}
	}
	s.record(name, run)
}

func (s *Scheduler) record(name string, run GuardRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mg, ok := s.guards[name]
	if !ok {
		return
	}
	mg.runs = append([]GuardRun{run}, mg.runs...)
	if len(mg.runs) > maxRecordedRuns {
		mg.runs = mg.runs[:maxRecordedRuns]
	}
}
