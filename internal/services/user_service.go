package services

import (
	"context"
	"fmt"
	"strings"

	"budgetwatch/internal/core"
	"budgetwatch/internal/log"
	"budgetwatch/internal/storage"
)

type UserService struct {
	store  storage.Store
	logger *log.Logger
}

func NewUserService(store storage.Store, logger *log.Logger) *UserService {
	return &UserService{store: store, logger: logger.WithComponent(log.ComponentUser)}
}

// CreateUser registers a user. The email is required and must be unused.
func (s *UserService) CreateUser(ctx context.Context, name, email string) (core.User, error) {
	u := core.User{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}

	var created core.User
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		created, err = tx.CreateUser(ctx, u)
		return err
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User created", log.FieldUserID, created.ID, log.FieldOperation, log.OpCreate)
	return created, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]core.User, error) {
	var users []core.User
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (core.User, error) {
	var u core.User
	err := s.store.WithinTx(ctx, func(tx storage.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, id)
		return err
	})
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
