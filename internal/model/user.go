package model

import "time"

// User запись внешнего справочника пользователей (только чтение)
type User struct {
	ID             int64     `json:"id"`
	Role           Role      `json:"role"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	TelegramChatID *int64    `json:"telegram_chat_id"` // nil - не привязан Telegram
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsMentor() bool {
	return u.Role == RoleMentor
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
