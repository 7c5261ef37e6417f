// Package storage реализует хранилище данных на основе PostgreSQL
// для управления пользователями сервиса. Предоставляет методы создания,
// чтения и атомарного обновления записей пользователя: план, статус,
// бан и привязку Telegram.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки-сентинелы хранилища. Сервисы сверяют их через errors.Is
// и транслируют в ответ клиенту.
var (
	// ErrUserNotFound — пользователь не найден по email, uid или telegram id.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailTaken — email уже занят; возвращается и при гонке двух
	// одновременных регистраций (уникальный индекс в базе).
	ErrEmailTaken = errors.New("email already registered")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует методы работы с пользователями.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'users'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table users missing or query error: %w", err)
	}
	return nil
}
