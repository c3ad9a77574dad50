package model

import (
	"strings"
	"time"
)

type SessionCategory string

const (
	CategoryYoga       SessionCategory = "YOGA"
	CategoryMeditation SessionCategory = "MEDITATION"
	CategoryDiet       SessionCategory = "DIET"
)

// Длительности по умолчанию, если у слота нельзя определить собственную
var categoryDefaultDurations = map[SessionCategory]time.Duration{
	CategoryYoga:       60 * time.Minute,
	CategoryMeditation: 30 * time.Minute,
	CategoryDiet:       45 * time.Minute,
}

// ParseSessionCategory разбирает категорию без учёта регистра
func ParseSessionCategory(s string) (SessionCategory, bool) {
	c := SessionCategory(strings.ToUpper(strings.TrimSpace(s)))
	return c, c.Valid()
}

func (c SessionCategory) Valid() bool {
	_, ok := categoryDefaultDurations[c]
	return ok
}

// DefaultDuration возвращает длительность сессии категории (60 минут для неизвестных)
func (c SessionCategory) DefaultDuration() time.Duration {
	if d, ok := categoryDefaultDurations[c]; ok {
		return d
	}
	return 60 * time.Minute
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
	PaymentStatusFailed   PaymentStatus = "FAILED"
)

type Role string

const (
	RoleMentor Role = "MENTOR"
	RoleUser   Role = "USER"
	RoleAdmin  Role = "ADMIN"
)
