package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/wellness_booking/internal/model"
)

const calendarProductID = "-//wellness_booking//sessions//EN"

// MentorCalendar GET /api/v1/mentors/:id/calendar.ics?from=&to=
// Отдаёт активные разовые и сгенерированные слоты ментора в формате iCalendar.
func (h *Handler) MentorCalendar(c *gin.Context) {
	mentorID, valid := pathID(c, "id")
	if !valid {
		return
	}
	from, to, valid := h.queryRange(c, mentorSpan)
	if !valid {
		return
	}

	slots, err := h.slots.ListMentorSlots(c.Request.Context(), mentorID, from, to)
	if err != nil {
		fail(c, h.logger, err)
		return
	}

	body := buildCalendar(mentorID, slots, h.now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="mentor-%d.ics"`, mentorID))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

func buildCalendar(mentorID int64, slots []*model.TimeSlot, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)
	cal.SetName(fmt.Sprintf("Mentor %d sessions", mentorID))

	for _, s := range slots {
		// шаблоны описывают расписание, а не конкретное занятие
		if s.IsRecurring {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("slot-%d@wellness_booking", s.ID))
		event.SetDtStampTime(stamp)
		event.SetStartAt(s.StartTime)
		event.SetEndAt(s.EndTime)
		event.SetSummary(eventSummary(s))
		event.SetDescription(eventDescription(s))
		if s.SessionLink != "" {
			event.SetURL(s.SessionLink)
		}
		if s.IsActive {
			event.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			event.SetStatus(ics.ObjectStatusCancelled)
		}
	}
	return cal.Serialize()
}

func eventSummary(s *model.TimeSlot) string {
	name := strings.ToLower(string(s.Category))
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return name + " session"
}

func eventDescription(s *model.TimeSlot) string {
	var sb strings.Builder
	sb.WriteString("Seats: ")
	sb.WriteString(strconv.Itoa(s.CurrentStudents))
	sb.WriteString("/")
	sb.WriteString(strconv.Itoa(s.MaxStudents))
	if s.Notes != "" {
		sb.WriteString("\n")
		sb.WriteString(s.Notes)
	}
	return sb.String()
}
