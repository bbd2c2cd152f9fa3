package scheduler

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/citation"
	"github.com/sells-group/visibility-cli/internal/model"
)

// ReprocessParams control one backfill pass.
type ReprocessParams struct {
	Domain model.ExtractionDomain
	Limit  int
}

// Reprocess re-mines successful executions that have no mentions and no
// citations, typically after a catalog import added entities. Executions are
// isolated: one failure is logged and counted as skipped, the pass continues.
func (s *Scheduler) Reprocess(ctx context.Context, params ReprocessParams) (*model.ReprocessReport, error) {
	start := s.now()

	engine, ok := s.engines[params.Domain]
	if !ok {
		return nil, eris.Errorf("scheduler: no extraction engine for domain %q", params.Domain)
	}

	execs, err := s.store.ListUnminedExecutions(ctx, params.Domain, params.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "scheduler: list unmined executions")
	}

	report := &model.ReprocessReport{}
	for _, exec := range execs {
		if ctx.Err() != nil {
			break
		}

		mentions := engine.Mentions(exec.ID, exec.ResponseText)
		inserted, err := s.store.UpsertMentions(ctx, mentions)
		if err != nil {
			zap.L().Warn("scheduler: reprocess mentions failed",
				zap.String("execution_id", exec.ID),
				zap.Error(err),
			)
			report.Skipped++
			continue
		}
		report.Mentions += inserted

		citations := s.classifier.ClassifyAll(exec.ID, citation.ExtractURLs(exec.ResponseText))
		inserted, err = s.store.InsertCitations(ctx, citations)
		if err != nil {
			zap.L().Warn("scheduler: reprocess citations failed",
				zap.String("execution_id", exec.ID),
				zap.Error(err),
			)
			report.Skipped++
			continue
		}
		report.Citations += inserted
		report.Processed++
	}

	report.RuntimeMS = s.now().Sub(start).Milliseconds()
	zap.L().Info("scheduler: reprocess complete",
		zap.String("domain", string(params.Domain)),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("mentions", report.Mentions),
		zap.Int("citations", report.Citations),
	)
	return report, nil
}
