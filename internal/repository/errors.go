package repository

import "errors"

// ErrDuplicateActiveBooking у студента уже есть активное бронирование этого слота
var ErrDuplicateActiveBooking = errors.New("student already holds an active booking for this slot")
