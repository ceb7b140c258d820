package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	telemetryIngested metric.Int64Counter
	commandsSent      metric.Int64Counter
	schedulesCreated  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "chargeplan"
	}
	meter := provider.Meter(name)

	telemetryIngested, err := meter.Int64Counter("chargeplan_telemetry_ingested_total",
		metric.WithDescription("Telemetry payloads by ingestion outcome."))
	if err != nil {
		return nil, err
	}
	commandsSent, err := meter.Int64Counter("chargeplan_commands_sent_total",
		metric.WithDescription("Device commands by action and send outcome."))
	if err != nil {
		return nil, err
	}
	schedulesCreated, err := meter.Int64Counter("chargeplan_schedules_created_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		telemetryIngested: telemetryIngested,
		commandsSent:      commandsSent,
		schedulesCreated:  schedulesCreated,
	}, nil
}

// RecordTelemetry counts telemetry payloads; outcome is stored, skipped or failed.
func (m *Metrics) RecordTelemetry(ctx context.Context, source, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.telemetryIngested.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordCommand counts a command send attempt.
func (m *Metrics) RecordCommand(ctx context.Context, action string, err error) {
	if m == nil {
		return
	}
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("outcome", outcome),
	)
	m.commandsSent.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordScheduleCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.schedulesCreated.Add(ctx, 1)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":      {},
	"outcome":     {},
	"action":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
