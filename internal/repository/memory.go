package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/softwove/roster/internal/domain"
)

var _ domain.UserStoreTx = new(MemoryUserStore)

// MemoryUserStore keeps users in a map behind a single mutex. The lock
// stands in for a database transaction, which is enough for tests and local
// development.
type MemoryUserStore struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	nextID int64
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:  make(map[int64]domain.User),
		nextID: 1,
	}
}

func (s *MemoryUserStore) RunInTx(ctx context.Context, _ domain.TxOptions, fn func(repo domain.UserRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memoryUserRepository{store: s})
}

type memoryUserRepository struct {
	store *MemoryUserStore
}

func (r *memoryUserRepository) FindByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (r *memoryUserRepository) FindByBirthDateBetween(_ context.Context, from, to time.Time) ([]domain.User, error) {
	var users []domain.User
	for id := int64(1); id < r.store.nextID; id++ {
		user, ok := r.store.users[id]
		if !ok {
			continue
		}
		if user.BirthDate.Before(from) || user.BirthDate.After(to) {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (r *memoryUserRepository) Save(_ context.Context, user *domain.User) error {
	if user.ID == 0 {
		for _, existing := range r.store.users {
			if existing.Email == user.Email {
				return fmt.Errorf("duplicate key value violates unique constraint on email %q", user.Email)
			}
		}
		user.ID = r.store.nextID
		r.store.nextID++
	}
	r.store.users[user.ID] = *user
	return nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id int64) error {
	delete(r.store.users, id)
	return nil
}
