package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/jwtpizza/internal/model"
	"github.com/hitoshi/jwtpizza/internal/repository"
)

var testSecret = []byte("test-secret-for-jwt-pizza")

// fakeUserRepo はメモリ上のUserRepository。
type fakeUserRepo struct {
	mu               sync.Mutex
	nextID           int64
	users            map[int64]*model.User
	findByEmailCalls int
	findByEmailErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.Roles = append([]model.RoleAssignment{}, u.Roles...)
	return &c
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.findByEmailCalls++
	if r.findByEmailErr != nil {
		return nil, r.findByEmailErr
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (r *fakeUserRepo) CreateWithRoles(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *fakeUserRepo) UpdateCredentials(_ context.Context, id int64, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrEmailTaken
	}
	if email != "" {
		for _, other := range r.users {
			if other.ID != id && other.Email == email {
				return repository.ErrEmailTaken
			}
		}
		u.Email = email
	}
	if passwordHash != "" {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (r *fakeUserRepo) emailLookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findByEmailCalls
}

// fakeScheduler は手動で発火させるScheduler。
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &fakeTimer{d: d, f: f}
	s.timers = append(s.timers, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

// fire はi番目のタイマーを発火させる。取り消し済みなら何もしない。
func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	t := s.timers[i]
	if t.stopped || t.fired {
		s.mu.Unlock()
		return
	}
	t.fired = true
	s.mu.Unlock()

	t.f()
}

// fireAll は保留中の全タイマーを登録順に発火させる。
func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	n := len(s.timers)
	s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.fire(i)
	}
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// testEnv はServiceと依存部品一式。
type testEnv struct {
	svc       *Service
	users     *fakeUserRepo
	sessions  *repository.MemorySessionRepo
	verifier  *TokenVerifier
	throttle  *LoginThrottle
	scheduler *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	vault, err := NewVault(bcrypt.MinCost)
	require.NoError(t, err)
	issuer, err := NewTokenIssuer(testSecret)
	require.NoError(t, err)

	sched := &fakeScheduler{}
	throttle := NewLoginThrottle(ThrottleConfig{Scheduler: sched.schedule})
	t.Cleanup(throttle.Stop)

	users := newFakeUserRepo()
	sessions := repository.NewMemorySessionRepo()

	return &testEnv{
		svc:       NewService(users, sessions, vault, throttle, issuer, nil),
		users:     users,
		sessions:  sessions,
		verifier:  NewTokenVerifier(testSecret, time.Hour, sessions, nil),
		throttle:  throttle,
		scheduler: sched,
	}
}

// register はテスト用にユーザーを登録する。
func (e *testEnv) register(t *testing.T, name, email, password string) *AuthResult {
	t.Helper()
	res, err := e.svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return res
}
