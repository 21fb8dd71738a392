package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/agropulse/cropalert-go/internal/domain/alert"
	"github.com/agropulse/cropalert-go/internal/domain/geo"
	"github.com/agropulse/cropalert-go/internal/domain/user"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/logging"
	"github.com/agropulse/cropalert-go/internal/infrastructure/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{
		OutputToFile:    false,
		OutputToConsole: false,
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func newTestCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

// fakeUserRepo is an in-memory user.Repository.
type fakeUserRepo struct {
	mu        sync.Mutex
	accounts  map[string]*user.Account
	radiusErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{accounts: make(map[string]*user.Account)}
}

func (r *fakeUserRepo) add(account user.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := account
	r.accounts[account.ID] = &copied
}

func (r *fakeUserRepo) FindByID(id string) (*user.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *account
	return &copied, nil
}

func (r *fakeUserRepo) FindByEmail(email string) (*user.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Store(account *user.Account) error {
	r.add(*account)
	return nil
}

func (r *fakeUserRepo) UpdateProfile(id string, crops []string, location *geo.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return errors.New("no such user")
	}
	account.SubscribedCrops = crops
	account.Location = location
	return nil
}

func (r *fakeUserRepo) SetApproval(id string, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return errors.New("no such user")
	}
	account.IsApproved = approved
	return nil
}

func (r *fakeUserRepo) FindPending(role user.Role) ([]user.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []user.Identity
	for _, account := range r.accounts {
		if account.Role == role && !account.IsApproved {
			pending = append(pending, account.Identity)
		}
	}
	return pending, nil
}

func (r *fakeUserRepo) FindWithinRadius(center geo.Point, radiusMeters float64, filter user.RoleFilter) ([]user.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.radiusErr != nil {
		return nil, r.radiusErr
	}
	var found []user.Identity
	for _, account := range r.accounts {
		if account.Role != filter.Role || account.Location == nil {
			continue
		}
		if filter.ApprovedOnly && !account.IsApproved {
			continue
		}
		if geo.DistanceMeters(center, *account.Location) <= radiusMeters {
			found = append(found, account.Identity)
		}
	}
	return found, nil
}

// fakeAlertRepo is an in-memory alert.Repository.
type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]*alert.Alert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[string]*alert.Alert)}
}

func (r *fakeAlertRepo) FindByID(id string) (*alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAlertRepo) FindAll() ([]alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []alert.Alert
	for _, a := range r.alerts {
		all = append(all, *a)
	}
	return all, nil
}

func (r *fakeAlertRepo) FindByCreator(creatorID string) ([]alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []alert.Alert
	for _, a := range r.alerts {
		if a.CreatorID == creatorID {
			mine = append(mine, *a)
		}
	}
	return mine, nil
}

func (r *fakeAlertRepo) FindWithinRadius(center geo.Point, radiusMeters float64, cropType string) ([]alert.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []alert.Alert
	for _, a := range r.alerts {
		if cropType != "" && a.CropType != cropType {
			continue
		}
		if geo.DistanceMeters(center, a.Location) <= radiusMeters {
			found = append(found, *a)
		}
	}
	return found, nil
}

func (r *fakeAlertRepo) Store(a *alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *a
	r.alerts[a.ID] = &copied
	return nil
}

func (r *fakeAlertRepo) Update(a *alert.Alert) error {
	return r.Store(a)
}

func (r *fakeAlertRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.alerts, id)
	return nil
}

// emitRecord captures one Transport.Emit call.
type emitRecord struct {
	Event   string
	Payload any
	Room    string
}

// fakeTransport records emits and can fail for selected rooms.
type fakeTransport struct {
	mu        sync.Mutex
	emits     []emitRecord
	failRooms map[string]error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{failRooms: make(map[string]error)}
}

func (t *fakeTransport) Emit(event string, payload any, room string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err, ok := t.failRooms[room]; ok {
		return err
	}
	t.emits = append(t.emits, emitRecord{Event: event, Payload: payload, Room: room})
	return nil
}

func (t *fakeTransport) recorded() []emitRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]emitRecord(nil), t.emits...)
}
