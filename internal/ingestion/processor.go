// Package ingestion turns device telemetry into the latest device status.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/chargeplan/internal/clock"
	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/observability/metrics"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	SourceMQTT = "mqtt"
	SourceHTTP = "http"
)

const (
	outcomeStored  = "stored"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

var ErrMissingDeviceID = errors.New("missing_device_id")

// Telemetry is one device-reported snapshot.
type Telemetry struct {
	DeviceID     string    `json:"deviceId"`
	BatteryLevel float64   `json:"batteryLevel"`
	IsCharging   bool      `json:"isCharging"`
	Timestamp    time.Time `json:"timestamp"`
}

type Result struct {
	Received int `json:"received"`
	Stored   int `json:"stored"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type Params struct {
	fx.In

	Store   recordstore.Store
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Processor struct {
	store   recordstore.Store
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewProcessor(p Params) *Processor {
	return &Processor{
		store:   p.Store,
		clock:   p.Clock,
		log:     p.Log.Named("ingestion"),
		metrics: p.Metrics,
	}
}

// Process stores each payload independently. A payload that fails to decode
// or store never affects the rest of the batch. No ordering is enforced
// between payloads for the same device: the last write wins.
func (p *Processor) Process(ctx context.Context, source string, payloads [][]byte) Result {
	result := Result{Received: len(payloads)}

	for i, payload := range payloads {
		telemetry, err := Decode(payload)
		if err != nil {
			result.Skipped++
			p.log.Warn("telemetry skipped",
				zap.String("source", source),
				zap.Int("index", i),
				zap.Int("payload_size", len(payload)),
				zap.Error(err),
			)
			continue
		}

		if err := p.store.PutStatus(ctx, p.toStatus(telemetry)); err != nil {
			result.Failed++
			p.log.Error("telemetry store failed",
				zap.String("source", source),
				zap.String("device_id", telemetry.DeviceID),
				zap.Error(err),
			)
			continue
		}
		result.Stored++
	}

	p.metrics.RecordTelemetry(ctx, source, outcomeStored, result.Stored)
	p.metrics.RecordTelemetry(ctx, source, outcomeSkipped, result.Skipped)
	p.metrics.RecordTelemetry(ctx, source, outcomeFailed, result.Failed)
	return result
}

func (p *Processor) toStatus(t Telemetry) devicedomain.DeviceStatus {
	if t.BatteryLevel < 0 || t.BatteryLevel > 100 {
		p.log.Warn("battery level out of range",
			zap.String("device_id", t.DeviceID),
			zap.Float64("battery_level", t.BatteryLevel),
		)
	}

	updated := t.Timestamp.UTC()
	if t.Timestamp.IsZero() {
		updated = p.clock.Now()
	}
	return devicedomain.DeviceStatus{
		DeviceID:     t.DeviceID,
		BatteryLevel: t.BatteryLevel,
		IsCharging:   t.IsCharging,
		LastUpdated:  updated,
	}
}

// Decode parses one telemetry payload. A payload without a device id is rejected.
func Decode(payload []byte) (Telemetry, error) {
	var t Telemetry
	if err := json.Unmarshal(payload, &t); err != nil {
		return Telemetry{}, fmt.Errorf("decode telemetry: %w", err)
	}
	t.DeviceID = strings.TrimSpace(t.DeviceID)
	if t.DeviceID == "" {
		return Telemetry{}, ErrMissingDeviceID
	}
	return t, nil
}
