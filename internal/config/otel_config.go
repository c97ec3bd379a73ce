package config

const (
	OTELExporterNone     = "none"
	OTELExporterStdout   = "stdout"
	OTELExporterOTLPHTTP = "otlp-http"
	OTELExporterOTLPGRPC = "otlp-grpc"
)

type OTELConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Exporter    string `mapstructure:"exporter"`
	Endpoint    string `mapstructure:"endpoint,omitempty"`
	Insecure    bool   `mapstructure:"insecure,omitempty"`
	ServiceName string `mapstructure:"service_name,omitempty"`
	// AuditLogs emits an OpenTelemetry log record for every job created or run.
	AuditLogs bool `mapstructure:"audit_logs,omitempty"`
}

func (o *OTELConfig) IsEnabled() bool {
	return o != nil && o.Enabled && o.Exporter != "" && o.Exporter != OTELExporterNone
}
