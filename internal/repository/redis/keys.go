package redis

import "fmt"

const ns = "seatwise:v1"

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyEventAvailability(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:availability", ns, eventID)
}

func KeyEventSeatMap(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:seatmap", ns, eventID)
}

func KeyEventList() string {
	return ns + ":events:list"
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}
