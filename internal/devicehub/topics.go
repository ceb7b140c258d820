package devicehub

import "strings"

const (
	telemetrySegment = "telemetry"
	commandsSegment  = "commands"
)

func TelemetryTopic(prefix, deviceID string) string {
	return join(prefix, deviceID, telemetrySegment)
}

func CommandTopic(prefix, deviceID string) string {
	return join(prefix, deviceID, commandsSegment)
}

// TelemetryWildcard matches telemetry from every device under prefix.
func TelemetryWildcard(prefix string) string {
	return join(prefix, "+", telemetrySegment)
}

// DeviceFromTopic extracts the device segment of a telemetry or command topic.
func DeviceFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

func join(prefix string, parts ...string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return strings.Join(parts, "/")
	}
	return prefix + "/" + strings.Join(parts, "/")
}
