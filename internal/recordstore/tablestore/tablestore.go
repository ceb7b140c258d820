// Package tablestore keeps device statuses and charging schedules in
// DynamoDB tables.
package tablestore

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
)

const (
	attrDeviceID   = "device_id"
	attrScheduleID = "schedule_id"
)

type Tables struct {
	Status          string
	Schedule        string
	ScheduleIDIndex string
}

type statusItem struct {
	DeviceID     string    `dynamodbav:"device_id"`
	BatteryLevel float64   `dynamodbav:"battery_level"`
	IsCharging   bool      `dynamodbav:"is_charging"`
	LastUpdated  time.Time `dynamodbav:"last_updated"`
}

type scheduleItem struct {
	DeviceID      string    `dynamodbav:"device_id"`
	ScheduleID    string    `dynamodbav:"schedule_id"`
	ScheduledTime time.Time `dynamodbav:"scheduled_time"`
	IsCompleted   bool      `dynamodbav:"is_completed"`
}

type Store struct {
	client Client
	tables Tables
}

func New(client Client, tables Tables) *Store {
	return &Store{client: client, tables: tables}
}

func (s *Store) GetStatus(ctx context.Context, deviceID string) (*devicedomain.DeviceStatus, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tables.Status),
		Key:            map[string]types.AttributeValue{attrDeviceID: stringValue(deviceID)},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, recordstore.Unavailable("get_status", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item statusItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, recordstore.Unavailable("get_status", err)
	}
	status := item.toDomain()
	return &status, nil
}

func (s *Store) PutStatus(ctx context.Context, status devicedomain.DeviceStatus) error {
	item, err := attributevalue.MarshalMap(statusItem{
		DeviceID:     status.DeviceID,
		BatteryLevel: status.BatteryLevel,
		IsCharging:   status.IsCharging,
		LastUpdated:  status.LastUpdated.UTC(),
	})
	if err != nil {
		return recordstore.Unavailable("put_status", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Status),
		Item:      item,
	})
	return recordstore.Unavailable("put_status", err)
}

func (s *Store) ListStatuses(ctx context.Context) ([]devicedomain.DeviceStatus, error) {
	items, err := s.scan(ctx, s.tables.Status)
	if err != nil {
		return nil, recordstore.Unavailable("list_statuses", err)
	}

	var rows []statusItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, recordstore.Unavailable("list_statuses", err)
	}
	out := make([]devicedomain.DeviceStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (s *Store) FindByScheduleID(ctx context.Context, scheduleID string) (*scheduledomain.ChargingSchedule, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Schedule),
		IndexName:              aws.String(s.tables.ScheduleIDIndex),
		KeyConditionExpression: aws.String("schedule_id = :schedule_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":schedule_id": stringValue(scheduleID),
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, recordstore.Unavailable("find_schedule", err)
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	var item scheduleItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return nil, recordstore.Unavailable("find_schedule", err)
	}
	schedule := item.toDomain()
	return &schedule, nil
}

func (s *Store) ListSchedulesByDevice(ctx context.Context, deviceID string) ([]scheduledomain.ChargingSchedule, error) {
	var items []map[string]types.AttributeValue
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tables.Schedule),
		KeyConditionExpression: aws.String("device_id = :device_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":device_id": stringValue(deviceID),
		},
		ConsistentRead: aws.Bool(true),
	}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, recordstore.Unavailable("list_schedules_by_device", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return decodeSchedules("list_schedules_by_device", items)
}

func (s *Store) ListAllSchedules(ctx context.Context) ([]scheduledomain.ChargingSchedule, error) {
	items, err := s.scan(ctx, s.tables.Schedule)
	if err != nil {
		return nil, recordstore.Unavailable("list_schedules", err)
	}
	return decodeSchedules("list_schedules", items)
}

func (s *Store) PutSchedule(ctx context.Context, schedule scheduledomain.ChargingSchedule) error {
	item, err := attributevalue.MarshalMap(scheduleItem{
		DeviceID:      schedule.DeviceID,
		ScheduleID:    schedule.ID,
		ScheduledTime: schedule.ScheduledTime.UTC(),
		IsCompleted:   schedule.IsCompleted,
	})
	if err != nil {
		return recordstore.Unavailable("put_schedule", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Schedule),
		Item:      item,
	})
	return recordstore.Unavailable("put_schedule", err)
}

func (s *Store) DeleteSchedule(ctx context.Context, scheduleID string) error {
	existing, err := s.FindByScheduleID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tables.Schedule),
		Key: map[string]types.AttributeValue{
			attrDeviceID:   stringValue(existing.DeviceID),
			attrScheduleID: stringValue(existing.ID),
		},
	})
	return recordstore.Unavailable("delete_schedule", err)
}

func (s *Store) scan(ctx context.Context, table string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func decodeSchedules(op string, items []map[string]types.AttributeValue) ([]scheduledomain.ChargingSchedule, error) {
	var rows []scheduleItem
	if err := attributevalue.UnmarshalListOfMaps(items, &rows); err != nil {
		return nil, recordstore.Unavailable(op, err)
	}
	out := make([]scheduledomain.ChargingSchedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ScheduledTime.Before(out[j].ScheduledTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (i statusItem) toDomain() devicedomain.DeviceStatus {
	return devicedomain.DeviceStatus{
		DeviceID:     i.DeviceID,
		BatteryLevel: i.BatteryLevel,
		IsCharging:   i.IsCharging,
		LastUpdated:  i.LastUpdated.UTC(),
	}
}

func (i scheduleItem) toDomain() scheduledomain.ChargingSchedule {
	return scheduledomain.ChargingSchedule{
		ID:            i.ScheduleID,
		DeviceID:      i.DeviceID,
		ScheduledTime: i.ScheduledTime.UTC(),
		IsCompleted:   i.IsCompleted,
	}
}

func stringValue(v string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: v}
}

var _ recordstore.Store = (*Store)(nil)
