package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/wellness_booking/internal/model"
	"github.com/Freeeeeet/wellness_booking/internal/repository/base"
)

// PostgresUserRepository чтение внешнего справочника пользователей
type PostgresUserRepository struct {
	*base.Repository
}

func NewUserRepository(db base.Querier) *PostgresUserRepository {
	return &PostgresUserRepository{Repository: base.NewRepository(db)}
}

// GetByID получает пользователя по ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `
		SELECT id, role, full_name, email, phone, telegram_chat_id, created_at
		FROM users
		WHERE id = $1
	`

	var (
		user model.User
		role string
	)
	err := r.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&role,
		&user.FullName,
		&user.Email,
		&user.Phone,
		&user.TelegramChatID,
		&user.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	user.Role = model.Role(role)
	return &user, nil
}
