package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/command/commandtest"
	"github.com/smallbiznis/chargeplan/internal/config"
	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	deviceservice "github.com/smallbiznis/chargeplan/internal/device/service"
	"github.com/smallbiznis/chargeplan/internal/ingestion"
	"github.com/smallbiznis/chargeplan/internal/observability"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"github.com/smallbiznis/chargeplan/internal/recordstore/memstore"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
	scheduleservice "github.com/smallbiznis/chargeplan/internal/schedule/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	engine *gin.Engine
	store  recordstore.Store
	sender *commandtest.Recorder
	clock  *clock.FakeClock
}

func newTestEnv(t *testing.T, store recordstore.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if store == nil {
		store = memstore.New()
	}
	log := zaptest.NewLogger(t)
	sender := commandtest.NewRecorder()
	fc := clock.NewFakeClock(testNow)

	engine := NewEngine(observability.Config{}, nil, log)
	NewServer(ServerParams{
		Gin: engine,
		Cfg: config.Config{HTTPAddr: ":0"},
		DeviceSvc: deviceservice.New(deviceservice.Params{
			Store:  store,
			Sender: sender,
			Clock:  fc,
			Log:    log,
		}),
		ScheduleSvc: scheduleservice.New(scheduleservice.Params{
			Store: store,
			Clock: fc,
			Log:   log,
		}),
		Processor: ingestion.NewProcessor(ingestion.Params{
			Store: store,
			Clock: fc,
			Log:   log,
		}),
		Log: log,
	})

	return &testEnv{engine: engine, store: store, sender: sender, clock: fc}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	resp := decode[errorResponse](t, rec)
	return resp.Error.Type, resp.Error.Message
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterCarTwiceConflicts(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/car/car-001/register", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode[struct {
		Message  string                    `json:"message"`
		DeviceID string                    `json:"deviceId"`
		Status   devicedomain.DeviceStatus `json:"status"`
	}](t, rec)
	assert.Equal(t, "Car registered successfully", body.Message)
	assert.Equal(t, "car-001", body.DeviceID)
	assert.Equal(t, devicedomain.DefaultBatteryLevel, body.Status.BatteryLevel)
	assert.False(t, body.Status.IsCharging)

	// telemetry changes the record; a second register must not reset it
	require.NoError(t, env.store.PutStatus(context.Background(), devicedomain.DeviceStatus{
		DeviceID:     "car-001",
		BatteryLevel: 81,
		IsCharging:   true,
		LastUpdated:  testNow,
	}))

	rec = env.do(t, http.MethodPost, "/car/car-001/register", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	errType, msg := errorMessage(t, rec)
	assert.Equal(t, "conflict", errType)
	assert.Equal(t, "Car already registered", msg)

	rec = env.do(t, http.MethodGet, "/car/car-001/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[devicedomain.DeviceStatus](t, rec)
	assert.Equal(t, 81.0, status.BatteryLevel)
	assert.True(t, status.IsCharging)
}

func TestGetCarStatusNotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/car/ghost/status", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errType, msg := errorMessage(t, rec)
	assert.Equal(t, "not_found", errType)
	assert.Equal(t, "Car not found", msg)
}

func TestListCars(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/cars", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"cars":[]}`, rec.Body.String())

	env.do(t, http.MethodPost, "/car/car-a/register", "")
	env.do(t, http.MethodPost, "/car/car-b/register", "")

	rec = env.do(t, http.MethodGet, "/cars", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Count int                         `json:"count"`
		Cars  []devicedomain.DeviceStatus `json:"cars"`
	}](t, rec)
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Cars, 2)
}

type unavailableStore struct {
	recordstore.Store
}

func (unavailableStore) ListStatuses(context.Context) ([]devicedomain.DeviceStatus, error) {
	return nil, recordstore.Unavailable("list_statuses", errors.New("connection refused"))
}

func TestListCarsStoreUnavailable(t *testing.T) {
	env := newTestEnv(t, unavailableStore{Store: memstore.New()})

	rec := env.do(t, http.MethodGet, "/cars", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	errType, _ := errorMessage(t, rec)
	assert.Equal(t, "internal_error", errType)
}

func TestChargingCommands(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/car/car-001/charging/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Charging started","deviceId":"car-001"}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/car/car-001/charging/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Charging stopped","deviceId":"car-001"}`, rec.Body.String())

	sent := env.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, command.ActionStart, sent[0].Command.Action)
	assert.Equal(t, command.ActionStop, sent[1].Command.Action)

	// commands never write status
	status, err := env.store.GetStatus(context.Background(), "car-001")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestChargingCommandChannelDown(t *testing.T) {
	env := newTestEnv(t, nil)
	env.sender.Fail["car-001"] = command.Unavailable(errors.New("broker down"))

	rec := env.do(t, http.MethodPost, "/car/car-001/charging/start", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestBlankDeviceIDRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/car/%20/register", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errType, _ := errorMessage(t, rec)
	assert.Equal(t, "validation_error", errType)
}

func TestCreateScheduleValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing body", body: "", message: "Invalid schedule data"},
		{name: "malformed", body: `{"scheduledTime":`, message: "Invalid schedule data"},
		{name: "missing time", body: `{"id":"s-1"}`, message: "Invalid schedule data"},
		{name: "past", body: `{"scheduledTime":"2026-05-04T08:30:00Z"}`, message: "Scheduled time must be in the future"},
		{name: "now", body: `{"scheduledTime":"2026-05-04T09:30:00Z"}`, message: "Scheduled time must be in the future"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/car/car-001/schedules", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			errType, msg := errorMessage(t, rec)
			assert.Equal(t, "validation_error", errType)
			assert.Equal(t, tc.message, msg)
		})
	}

	all, err := env.store.ListAllSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateAndListSchedules(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/car/car-001/schedules",
		`{"scheduledTime":"2026-05-04T22:00:00Z","deviceId":"someone-else","isCompleted":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[scheduledomain.ChargingSchedule](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "car-001", created.DeviceID)
	assert.False(t, created.IsCompleted)

	rec = env.do(t, http.MethodPost, "/car/car-001/schedules", `{"id":"night","scheduledTime":"2026-05-05T01:00:00+02:00"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/car/car-001/schedules", `{"id":"night","scheduledTime":"2026-05-05T02:00:00Z"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/car/car-002/schedules", `{"scheduledTime":"2026-05-04T23:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/car/car-001/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	schedules := decode[[]scheduledomain.ChargingSchedule](t, rec)
	require.Len(t, schedules, 2)
	for _, s := range schedules {
		assert.Equal(t, "car-001", s.DeviceID)
	}

	rec = env.do(t, http.MethodGet, "/car/car-404/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeleteSchedule(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/car/car-001/schedules", `{"id":"s-1","scheduledTime":"2026-05-04T22:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/car/car-002/schedules/s-1", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	errType, msg := errorMessage(t, rec)
	assert.Equal(t, "forbidden", errType)
	assert.Equal(t, "Schedule does not belong to this device", msg)

	still, err := env.store.FindByScheduleID(context.Background(), "s-1")
	require.NoError(t, err)
	require.NotNil(t, still)

	rec = env.do(t, http.MethodDelete, "/car/car-001/schedules/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	_, msg = errorMessage(t, rec)
	assert.Equal(t, "Schedule not found", msg)

	rec = env.do(t, http.MethodDelete, "/car/car-001/schedules/s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Schedule deleted successfully"}`, rec.Body.String())

	gone, err := env.store.FindByScheduleID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestIngestTelemetryBatch(t *testing.T) {
	env := newTestEnv(t, nil)

	body := `[
		{"deviceId":"car-001","batteryLevel":64.5,"isCharging":true,"timestamp":"2026-05-04T09:29:00Z"},
		{"deviceId":"","batteryLevel":10},
		"not an object",
		{"deviceId":"car-002","batteryLevel":12,"isCharging":false}
	]`
	rec := env.do(t, http.MethodPost, "/telemetry", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	result := decode[ingestion.Result](t, rec)
	assert.Equal(t, ingestion.Result{Received: 4, Stored: 2, Skipped: 2}, result)

	status, err := env.store.GetStatus(context.Background(), "car-001")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, 64.5, status.BatteryLevel)
	assert.True(t, status.IsCharging)

	defaulted, err := env.store.GetStatus(context.Background(), "car-002")
	require.NoError(t, err)
	require.NotNil(t, defaulted)
	assert.True(t, defaulted.LastUpdated.Equal(testNow))
}

func TestIngestTelemetryRejectsNonArray(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, body := range []string{`{"deviceId":"car-001"}`, `null`, `garbage`} {
		rec := env.do(t, http.MethodPost, "/telemetry", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	errType, _ := errorMessage(t, rec)
	assert.Equal(t, "not_found", errType)
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(recordstore.Unavailable("get_status", errors.New("timeout")))
	assert.Equal(t, "internal_error", errType)
	assert.Equal(t, "record_store_unavailable", code)

	errType, code = classifyErrorForLog(scheduledomain.ErrScheduleInPast)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "schedule_in_past", code)
}
