package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"loyaltyloop/internal/application/apperr"
	"loyaltyloop/internal/domain/identity"
)

type memPrefs struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemPrefs() *memPrefs { return &memPrefs{data: map[string]string{}} }

func (p *memPrefs) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", false, p.err
	}
	v, ok := p.data[key]
	return v, ok, nil
}

func (p *memPrefs) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.data[key] = value
	return nil
}

func (p *memPrefs) value(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data[key]
}

// fakeProvider records calls and lets tests emit auth-state notifications by hand.
type fakeProvider struct {
	mu        sync.Mutex
	watchers  map[int]func(*identity.ProviderUser)
	allSubs   []func(*identity.ProviderUser)
	nextID    int
	passwords map[string]string

	signOutErr error
	hold       chan struct{} // when set, SignIn waits on it

	signIns   atomic.Int32
	signOuts  atomic.Int32
	creates   atomic.Int32
	resets    atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		watchers:  map[int]func(*identity.ProviderUser){},
		passwords: map[string]string{},
	}
}

func (p *fakeProvider) OnAuthStateChanged(fn func(*identity.ProviderUser)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.watchers[id] = fn
	p.allSubs = append(p.allSubs, fn)
	return func() {
		p.mu.Lock()
		delete(p.watchers, id)
		p.mu.Unlock()
	}
}

func (p *fakeProvider) emit(u *identity.ProviderUser) {
	p.mu.Lock()
	var fns []func(*identity.ProviderUser)
	for _, fn := range p.watchers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (p *fakeProvider) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}

func (p *fakeProvider) subscription(i int) func(*identity.ProviderUser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allSubs[i]
}

func (p *fakeProvider) enter() func() {
	n := p.inFlight.Add(1)
	for {
		m := p.maxFlight.Load()
		if n <= m || p.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { p.inFlight.Add(-1) }
}

func (p *fakeProvider) SignIn(_ context.Context, email, password string) (*identity.ProviderUser, error) {
	p.signIns.Add(1)
	defer p.enter()()
	if p.hold != nil {
		<-p.hold
	} else {
		time.Sleep(time.Millisecond)
	}
	p.mu.Lock()
	want, ok := p.passwords[email]
	p.mu.Unlock()
	if !ok || want != password {
		return nil, apperr.ErrInvalidCredentials
	}
	u := &identity.ProviderUser{UID: "uid-" + email, Email: email}
	p.emit(u)
	return u, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.signOuts.Add(1)
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.emit(nil)
	return nil
}

func (p *fakeProvider) CreateAccount(_ context.Context, email, password string) (*identity.ProviderUser, error) {
	p.creates.Add(1)
	p.mu.Lock()
	if _, exists := p.passwords[email]; exists {
		p.mu.Unlock()
		return nil, apperr.ErrEmailInUse
	}
	if len(password) < 6 {
		p.mu.Unlock()
		return nil, apperr.ErrWeakPassword
	}
	p.passwords[email] = password
	p.mu.Unlock()
	u := &identity.ProviderUser{UID: "uid-" + email, Email: email}
	p.emit(u)
	return u, nil
}

func (p *fakeProvider) SendPasswordReset(_ context.Context, email string) error {
	p.resets.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.passwords[email]; !ok {
		return apperr.ErrUserNotFound
	}
	return nil
}

var errTransport = errors.New("connection reset by peer")
