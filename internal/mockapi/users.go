package mockapi

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"vantage/internal/identity"
	"vantage/pkg/secrets"
)

// user is a stored demo account: the identity plus server-only fields.
type user struct {
	identity.Identity
	passwordHash string
	failedLogins int
	lockedUntil  time.Time
}

const (
	maxFailedLogins = 5
	lockoutWindow   = 15 * time.Minute
)

// userStore keeps demo accounts in memory, seeded at startup.
type userStore struct {
	mu      sync.Mutex
	byEmail map[string]*user
	byID    map[string]*user
}

func newUserStore() *userStore {
	s := &userStore{
		byEmail: make(map[string]*user),
		byID:    make(map[string]*user),
	}
	s.seed()
	return s
}

// seed creates the demo accounts the console ships with.
func (s *userStore) seed() {
	now := time.Now().UTC()
	s.add(&user{
		Identity: identity.Identity{
			ID:            uuid.NewString(),
			Email:         "admin@vantage.dev",
			FirstName:     "Avery",
			LastName:      "Root",
			Role:          identity.RoleSuperadmin,
			Active:        true,
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		passwordHash: mustHash("Sup3radmin!"),
	})
	s.add(&user{
		Identity: identity.Identity{
			ID:         uuid.NewString(),
			Email:      "ops@vantage.dev",
			FirstName:  "Sam",
			LastName:   "Ops",
			Role:       identity.RoleInternalStaff,
			StaffTitle: identity.StaffTitleOperations,
			Permissions: []identity.Permission{
				identity.PermissionUsersRead,
				identity.PermissionReportsRead,
			},
			Active:        true,
			EmailVerified: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		passwordHash: mustHash("Op3rator!"),
	})
	s.add(&user{
		Identity: identity.Identity{
			ID:            uuid.NewString(),
			Email:         "unverified@vantage.dev",
			FirstName:     "Uma",
			LastName:      "New",
			Role:          identity.RoleInternalStaff,
			StaffTitle:    identity.StaffTitleSupport,
			Active:        true,
			EmailVerified: false,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		passwordHash: mustHash("Unv3rified!"),
	})
}

// mustHash uses the cheapest bcrypt cost: these are demo accounts, not real
// credentials.
func mustHash(password string) string {
	hash, err := secrets.Hash(password, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return hash
}

func (s *userStore) add(u *user) {
	s.byEmail[strings.ToLower(u.Email)] = u
	s.byID[u.ID] = u
}

// authResult classifies a login attempt.
type authResult int

const (
	authOK authResult = iota
	authBadCredentials
	authLocked
	authUnverified
)

// authenticate checks the password and tracks the failed-attempt lockout.
func (s *userStore) authenticate(email, password string) (*user, authResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, authBadCredentials
	}
	if time.Now().Before(u.lockedUntil) {
		return nil, authLocked
	}
	if secrets.Verify(password, u.passwordHash) != nil {
		u.failedLogins++
		if u.failedLogins >= maxFailedLogins {
			u.lockedUntil = time.Now().Add(lockoutWindow)
			u.failedLogins = 0
			return nil, authLocked
		}
		return nil, authBadCredentials
	}
	if !u.EmailVerified {
		return nil, authUnverified
	}

	u.failedLogins = 0
	copied := *u
	return &copied, authOK
}

func (s *userStore) find(id string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	copied := *u
	return &copied, true
}

func (s *userStore) findByEmail(email string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, false
	}
	copied := *u
	return &copied, true
}

func (s *userStore) updateProfile(id, firstName, lastName string) (*user, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	if lastName != "" {
		u.LastName = lastName
	}
	u.UpdatedAt = time.Now().UTC()
	copied := *u
	return &copied, true
}

func (s *userStore) changePassword(id, current, next string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return false
	}
	if secrets.Verify(current, u.passwordHash) != nil {
		return false
	}
	u.passwordHash = mustHash(next)
	u.UpdatedAt = time.Now().UTC()
	return true
}

func (s *userStore) setPassword(email, next string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return false
	}
	u.passwordHash = mustHash(next)
	u.UpdatedAt = time.Now().UTC()
	return true
}

func (s *userStore) markVerified(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return false
	}
	u.EmailVerified = true
	u.UpdatedAt = time.Now().UTC()
	return true
}
