package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cuemby/oracle-monitor/pkg/log"
	"github.com/cuemby/oracle-monitor/pkg/report"
)

// ErrDelivery wraps any failure to hand a report to the transport
var ErrDelivery = errors.New("report delivery failed")

// Sender delivers a report to a notification channel
type Sender interface {
	Send(ctx context.Context, r *report.Report) error
}

// LogSender writes reports to the log instead of a channel
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a sender for dry-run mode
func NewLogSender() *LogSender {
	return &LogSender{logger: log.WithComponent("notify")}
}

// Send logs every section of the report
func (s *LogSender) Send(ctx context.Context, r *report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info().
		Str("report_id", r.ID).
		Str("title", r.Title).
		Bool("has_issues", r.HasIssues).
		Time("captured_at", r.CapturedAt).
		Msg("Report (dry run)")

	for _, section := range r.Sections {
		s.logger.Info().
			Str("report_id", r.ID).
			Str("section", section.Name).
			Int("total", section.Total).
			Msg(section.Text())
	}
	return nil
}
