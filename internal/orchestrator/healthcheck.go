package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/johndauphine/crosswalk/internal/logging"
	"github.com/johndauphine/crosswalk/internal/target"
)

// checkTimeout bounds each side of a health check.
const checkTimeout = 30 * time.Second

// HealthCheckResult reports source and target reachability.
type HealthCheckResult struct {
	Timestamp       string   `json:"timestamp"`
	SourceType      string   `json:"source_type"`
	TargetType      string   `json:"target_type"`
	SourceConnected bool     `json:"source_connected"`
	SourceLatencyMs int64    `json:"source_latency_ms"`
	SourceError     string   `json:"source_error,omitempty"`
	SourceTables    int      `json:"source_tables"`
	MissingTables   []string `json:"missing_tables,omitempty"`
	TargetConnected bool     `json:"target_connected"`
	TargetLatencyMs int64    `json:"target_latency_ms"`
	TargetError     string   `json:"target_error,omitempty"`
	Healthy         bool     `json:"healthy"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

type tableChecker interface {
	HasTable(ctx context.Context, name string) (bool, error)
}

// HealthCheck checks the source and the target in parallel, each with its
// own timeout. On the source side it also confirms every legacy table the
// crosswalk reads is present; absent expected-empty tables are not counted
// as missing.
func (o *Orchestrator) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	result := &HealthCheckResult{
		Timestamp:  time.Now().Format(time.RFC3339),
		SourceType: o.config.Source.Type,
		TargetType: o.config.Target.Type,
	}
	if o.opts.DryRun {
		result.TargetType = "dryrun"
	}

	var g errgroup.Group
	g.Go(func() error {
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := o.checkSource(sctx, result); err != nil {
			result.SourceError = err.Error()
		} else {
			result.SourceConnected = true
		}
		result.SourceLatencyMs = time.Since(start).Milliseconds()
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		tctx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()
		if err := o.checkTarget(tctx); err != nil {
			result.TargetError = err.Error()
		} else {
			result.TargetConnected = true
		}
		result.TargetLatencyMs = time.Since(start).Milliseconds()
		return nil
	})
	_ = g.Wait()

	result.Healthy = result.SourceConnected && result.TargetConnected && len(result.MissingTables) == 0
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) checkSource(ctx context.Context, result *HealthCheckResult) error {
	if p, ok := o.reader.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	tc, ok := o.reader.(tableChecker)
	if !ok {
		return nil
	}
	for _, id := range o.crosswalk.IDs() {
		rules, _ := o.crosswalk.Rules(id)
		if rules.Source == "" {
			continue
		}
		exists, err := tc.HasTable(ctx, rules.Source)
		if err != nil {
			return fmt.Errorf("checking %s: %w", rules.Source, err)
		}
		if exists {
			result.SourceTables++
			continue
		}
		if t, ok := o.schema.Table(id); ok && t.ExpectedEmpty {
			continue
		}
		result.MissingTables = append(result.MissingTables, rules.Source)
	}
	return nil
}

func (o *Orchestrator) checkTarget(ctx context.Context) error {
	dest, err := o.destination(ctx)
	if err != nil {
		return err
	}
	if p, ok := dest.(target.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// PrintHealth logs a health check result.
func PrintHealth(r *HealthCheckResult) {
	if r.SourceConnected {
		logging.Info("%-8s OK %s, %d legacy tables (%dms)", "source", r.SourceType, r.SourceTables, r.SourceLatencyMs)
	} else {
		logging.Error("%-8s FAIL %s: %s", "source", r.SourceType, r.SourceError)
	}
	for _, name := range r.MissingTables {
		logging.Error("%-8s MISSING %s", "source", name)
	}
	if r.TargetConnected {
		logging.Info("%-8s OK %s (%dms)", "target", r.TargetType, r.TargetLatencyMs)
	} else {
		logging.Error("%-8s FAIL %s: %s", "target", r.TargetType, r.TargetError)
	}
}
