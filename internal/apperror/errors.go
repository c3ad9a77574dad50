package apperror

// Ошибки, которые сервисы отдают наружу. Сравниваются через errors.Is.
var (
	ErrSlotNotFound    = New(KindNotFound, "time slot not found")
	ErrBookingNotFound = New(KindNotFound, "booking not found")
	ErrUserNotFound    = New(KindNotFound, "user not found")

	ErrSlotAlreadyBooked = New(KindConflict, "time slot is already booked")
	ErrSlotInactive      = New(KindConflict, "time slot is not active")
	ErrSlotStarted       = New(KindConflict, "time slot has already started")
	ErrSlotIsTemplate    = New(KindConflict, "recurring template slots cannot be booked")
	ErrAlreadyHoldsSeat  = New(KindConflict, "student already holds a seat in this time slot")
	ErrMentorOverlap     = New(KindConflict, "mentor has an overlapping session at this time")
	ErrSlotOverlap       = New(KindConflict, "time slot overlaps another active slot of the mentor")
	ErrOwnSlot           = New(KindConflict, "mentors cannot book their own time slots")
	ErrConcurrentUpdate  = New(KindConflict, "session was changed by another request, reload and retry")

	// Чужие ресурсы не раскрываются: для постороннего они просто не существуют.
	ErrNotMentor      = New(KindNotFound, "mentor not found")
	ErrNotSlotOwner   = New(KindNotFound, "time slot not found among the mentor's slots")
	ErrNotParticipant = New(KindNotFound, "booking not found among the user's sessions")
)
