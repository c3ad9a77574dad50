package notify

import (
	"fmt"
	"strings"
	"time"
)

const timeLayout = "Mon 02 Jan 2006 15:04 MST"

// Render формирует текст уведомления по событию
func Render(event Event, p Payload) Message {
	when := formatRange(p.StartTime, p.EndTime)
	category := strings.ToLower(string(p.Category))

	var subject, text string
	switch event {
	case EventSlotCreated:
		subject = "New time slot published"
		text = fmt.Sprintf("Your %s slot %s is published and open for booking.", category, when)
	case EventSessionScheduled:
		subject = "Session booked"
		text = fmt.Sprintf("Your %s session %s is booked.", category, when)
	case EventSessionStarted:
		subject = "Session started"
		text = fmt.Sprintf("Your %s session has started.", category)
	case EventSessionDelayed:
		subject = "Session is running late"
		text = fmt.Sprintf("Your %s session planned %s has not started yet.", category, when)
	case EventSessionCompleted:
		subject = "Session completed"
		text = fmt.Sprintf("Your %s session is completed. Thank you!", category)
	case EventSessionNoShow:
		subject = "Session missed"
		text = fmt.Sprintf("Your %s session %s was marked as missed. You can reschedule it.", category, when)
	case EventSessionCancelled:
		subject = "Session cancelled"
		text = fmt.Sprintf("Your %s session %s is cancelled.", category, when)
	case EventSessionRescheduled:
		subject = "Session rescheduled"
		text = fmt.Sprintf("Your missed %s session is rescheduled to %s.", category, when)
	default:
		subject = "Session update"
		text = fmt.Sprintf("Session %d status: %s.", p.BookingID, p.Status)
	}

	if p.SessionLink != "" && (event == EventSessionScheduled || event == EventSessionStarted || event == EventSessionRescheduled) {
		text += "\nJoin: " + p.SessionLink
	}

	return Message{Subject: subject, Text: text}
}

func formatRange(start, end time.Time) string {
	if start.IsZero() {
		return ""
	}
	if end.IsZero() || !end.After(start) {
		return "at " + start.Format(timeLayout)
	}
	return fmt.Sprintf("on %s - %s", start.Format(timeLayout), end.Format("15:04"))
}
