package telemetry

import (
	"context"
	"strconv"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

const auditScope = "github.com/BenMacKenzie/db-mlops/audit"

const (
	AuditJobCreated  = "job.created"
	AuditJobOrphaned = "job.orphaned"
	AuditRunStarted  = "run.started"
)

// Auditor emits OpenTelemetry log records for changes made in the workspace. A nil
// or disabled auditor drops every record.
type Auditor struct {
	logger otellog.Logger
}

// NewAuditor returns an auditor bound to the global log provider, or nil when
// disabled.
func NewAuditor(enabled bool) *Auditor {
	if !enabled {
		return nil
	}
	return &Auditor{logger: global.GetLoggerProvider().Logger(auditScope)}
}

// Record emits one audit event. projectID is zero for jobs without a project.
func (a *Auditor) Record(ctx context.Context, event string, projectID int64, jobID string, runID string) {
	if a == nil {
		return
	}
	var rec otellog.Record
	rec.SetTimestamp(time.Now())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetEventName(event)
	rec.SetBody(otellog.StringValue(event))
	attrs := []otellog.KeyValue{otellog.String("job_id", jobID)}
	if projectID != 0 {
		attrs = append(attrs, otellog.String("project_id", strconv.FormatInt(projectID, 10)))
	}
	if runID != "" {
		attrs = append(attrs, otellog.String("run_id", runID))
	}
	rec.AddAttributes(attrs...)
	a.logger.Emit(ctx, rec)
}
