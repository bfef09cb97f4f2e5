// Package authprovider is the local authentication provider: accounts in SQLite,
// one signed-in account per device, and emailed password-reset links.
//
// A Client exposes exactly the five capabilities the session layer consumes.
package authprovider

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"loyaltyloop/internal/adapters/email"
	accountStore "loyaltyloop/internal/adapters/storage/account"
	"loyaltyloop/internal/adapters/storage/authsession"
	"loyaltyloop/internal/application/apperr"
	domain "loyaltyloop/internal/domain/account"
	"loyaltyloop/internal/domain/identity"
)

// Config holds provider settings.
type Config struct {
	ResetSecret []byte        // HS256 key for reset codes
	BaseURL     string        // e.g. "https://loyalty.example.com"; links point at BaseURL + "/auth/action"
	SessionTTL  time.Duration // defaults to authsession.DefaultTTL
	BusinessID  string        // tenant assigned to new accounts; defaults to identity.DefaultBusinessID
}

// ErrMissingSecret is returned by New when no reset secret is configured.
var ErrMissingSecret = errors.New("reset secret is required")

// Service owns accounts, device sessions and auth-state watchers.
type Service struct {
	accounts accountStore.Store
	sessions authsession.Store
	sender   email.Sender
	secret   []byte
	baseURL  string
	ttl      time.Duration
	business string

	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	watchers map[string]map[uint64]func(*identity.ProviderUser)
	nextID   uint64

	// deliveries for one device always map to the same stripe
	stripes [64]sync.Mutex
}

// New creates the provider.
// PRE: accounts, sessions and sender are non-nil
// POST: Returns a ready service or ErrMissingSecret
func New(accounts accountStore.Store, sessions authsession.Store, sender email.Sender, cfg Config) (*Service, error) {
	if len(cfg.ResetSecret) == 0 {
		return nil, ErrMissingSecret
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = authsession.DefaultTTL
	}
	biz := cfg.BusinessID
	if biz == "" {
		biz = identity.DefaultBusinessID
	}
	return &Service{
		accounts: accounts,
		sessions: sessions,
		sender:   sender,
		secret:   cfg.ResetSecret,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		ttl:      ttl,
		business: biz,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		watchers: make(map[string]map[uint64]func(*identity.ProviderUser)),
	}, nil
}

// Client returns the provider as seen from one device.
func (s *Service) Client(deviceID string) *Client {
	return &Client{svc: s, deviceID: deviceID}
}

// Client is a device-bound view of the Service.
type Client struct {
	svc      *Service
	deviceID string
}

// OnAuthStateChanged registers fn for the device. The current state is delivered
// asynchronously once; later deliveries follow every sign-in, sign-out and account creation.
// POST: the returned func unregisters fn
func (c *Client) OnAuthStateChanged(fn func(*identity.ProviderUser)) func() {
	s := c.svc
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if s.watchers[c.deviceID] == nil {
		s.watchers[c.deviceID] = make(map[uint64]func(*identity.ProviderUser))
	}
	s.watchers[c.deviceID][id] = fn
	s.mu.Unlock()

	go s.deliver(c.deviceID, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[c.deviceID], id)
		if len(s.watchers[c.deviceID]) == 0 {
			delete(s.watchers, c.deviceID)
		}
	}
}

// SignIn checks credentials and signs the device in.
func (c *Client) SignIn(ctx context.Context, emailAddr, password string) (*identity.ProviderUser, error) {
	s := c.svc
	if err := domain.ValidateEmail(emailAddr); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidEmail, err)
	}
	acc, err := s.accounts.GetByEmail(ctx, emailAddr)
	if errors.Is(err, accountStore.ErrNotFound) {
		slog.Info("auth_event", "event", "login_failed", "reason", "unknown_email")
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if acc.IsLocked(now) {
		slog.Warn("auth_event", "event", "login_locked", "account_id", acc.ID)
		return nil, apperr.ErrAccountLocked
	}
	if err := acc.CheckPassword(password); err != nil {
		acc.RecordFailedLogin(now)
		if saveErr := s.accounts.Save(ctx, acc); saveErr != nil {
			return nil, saveErr
		}
		slog.Info("auth_event", "event", "login_failed", "account_id", acc.ID, "failed_logins", acc.FailedLogins)
		if acc.IsLocked(now) {
			return nil, apperr.ErrAccountLocked
		}
		return nil, apperr.ErrInvalidCredentials
	}

	acc.RecordSignIn(now)
	if err := s.accounts.Save(ctx, acc); err != nil {
		return nil, err
	}
	if err := s.startSession(ctx, c.deviceID, acc.ID); err != nil {
		return nil, err
	}
	slog.Info("auth_event", "event", "login_success", "account_id", acc.ID)
	s.notify(c.deviceID)
	return toProviderUser(acc), nil
}

// SignOut ends the device's session. Signing out a signed-out device succeeds.
func (c *Client) SignOut(ctx context.Context) error {
	s := c.svc
	if err := s.sessions.Delete(ctx, c.deviceID); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "logout", "device_id", c.deviceID)
	s.notify(c.deviceID)
	return nil
}

// CreateAccount registers a new account and signs the device in as it.
func (c *Client) CreateAccount(ctx context.Context, emailAddr, password string) (*identity.ProviderUser, error) {
	s := c.svc
	acc := domain.Account{
		ID:         s.newID(),
		Email:      domain.NormalizeEmail(emailAddr),
		BusinessID: s.business,
		CreatedAt:  s.now(),
	}
	if err := acc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidEmail, err)
	}
	if err := acc.SetPassword(password); err != nil {
		if errors.Is(err, domain.ErrEmptyPassword) || errors.Is(err, domain.ErrPasswordTooShort) {
			return nil, fmt.Errorf("%w: %v", apperr.ErrWeakPassword, err)
		}
		return nil, err
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, accountStore.ErrDuplicateEmail) {
			return nil, apperr.ErrEmailInUse
		}
		return nil, err
	}
	acc.RecordSignIn(s.now())
	if err := s.accounts.Save(ctx, acc); err != nil {
		return nil, err
	}
	if err := s.startSession(ctx, c.deviceID, acc.ID); err != nil {
		return nil, err
	}
	slog.Info("auth_event", "event", "account_created", "account_id", acc.ID)
	s.notify(c.deviceID)
	return toProviderUser(acc), nil
}

// SendPasswordReset emails a reset link to an existing account.
func (c *Client) SendPasswordReset(ctx context.Context, emailAddr string) error {
	s := c.svc
	if err := domain.ValidateEmail(emailAddr); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidEmail, err)
	}
	acc, err := s.accounts.GetByEmail(ctx, emailAddr)
	if errors.Is(err, accountStore.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	code, err := s.issueResetCode(acc)
	if err != nil {
		return err
	}
	msg, err := email.ResetPasswordMessage(acc.Email, s.ActionURL(code))
	if err != nil {
		return err
	}
	if _, err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	slog.Info("auth_event", "event", "password_reset_sent", "account_id", acc.ID)
	return nil
}

// ActionURL is the link embedded in reset emails.
func (s *Service) ActionURL(code string) string {
	q := url.Values{}
	q.Set("mode", "resetPassword")
	q.Set("oobCode", code)
	return s.baseURL + "/auth/action?" + q.Encode()
}

// VerifyResetCode returns the email the code was issued for.
func (s *Service) VerifyResetCode(ctx context.Context, code string) (string, error) {
	acc, err := s.accountForCode(ctx, code)
	if err != nil {
		return "", err
	}
	return acc.Email, nil
}

// ConfirmPasswordReset sets a new password. The code stops working afterwards
// because the password fingerprint changes.
// POST: lockout cleared, existing device sessions left intact
func (s *Service) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	acc, err := s.accountForCode(ctx, code)
	if err != nil {
		return err
	}
	if err := acc.SetPassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrWeakPassword, err)
	}
	acc.FailedLogins = 0
	acc.LockedUntil = time.Time{}
	if err := s.accounts.Save(ctx, acc); err != nil {
		return err
	}
	slog.Info("auth_event", "event", "password_reset_confirmed", "account_id", acc.ID)
	return nil
}

func (s *Service) accountForCode(ctx context.Context, code string) (domain.Account, error) {
	claims, err := s.parseResetCode(code)
	if err != nil {
		return domain.Account{}, err
	}
	acc, err := s.accounts.GetByID(ctx, claims.Subject)
	if errors.Is(err, accountStore.ErrNotFound) {
		return domain.Account{}, ErrInvalidResetCode
	}
	if err != nil {
		return domain.Account{}, err
	}
	if acc.PasswordFingerprint() != claims.Pwh {
		return domain.Account{}, ErrInvalidResetCode
	}
	return acc, nil
}

// EnsureAccount creates the account if the email is unknown. It never signs a device in.
// POST: returns true when a new account was created
func (s *Service) EnsureAccount(ctx context.Context, emailAddr, password string) (bool, error) {
	if _, err := s.accounts.GetByEmail(ctx, emailAddr); err == nil {
		return false, nil
	} else if !errors.Is(err, accountStore.ErrNotFound) {
		return false, err
	}
	acc := domain.Account{
		ID:         s.newID(),
		Email:      domain.NormalizeEmail(emailAddr),
		BusinessID: s.business,
		CreatedAt:  s.now(),
	}
	if err := acc.Validate(); err != nil {
		return false, err
	}
	if err := acc.SetPassword(password); err != nil {
		return false, err
	}
	if err := s.accounts.Create(ctx, acc); err != nil {
		return false, err
	}
	return true, nil
}

// CountAccounts returns the number of registered accounts.
func (s *Service) CountAccounts(ctx context.Context) (int, error) {
	return s.accounts.Count(ctx)
}

// PurgeExpiredSessions deletes device sessions past their expiry.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

// CurrentUser returns the account signed in on the device, or nil.
func (s *Service) CurrentUser(ctx context.Context, deviceID string) (*identity.ProviderUser, error) {
	rec, err := s.sessions.Get(ctx, deviceID)
	if errors.Is(err, authsession.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, deviceID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	acc, err := s.accounts.GetByID(ctx, rec.AccountID)
	if errors.Is(err, accountStore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toProviderUser(acc), nil
}

func (s *Service) startSession(ctx context.Context, deviceID, accountID string) error {
	now := s.now()
	return s.sessions.Put(ctx, authsession.Record{
		DeviceID:  deviceID,
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	})
}

func (s *Service) deviceLock(deviceID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(deviceID))
	return &s.stripes[h.Sum32()%uint32(len(s.stripes))]
}

// notify delivers the device's current state to every watcher.
func (s *Service) notify(deviceID string) {
	s.deliver(deviceID, 0)
}

// deliver reads the current state and calls the watcher id (or all when id is 0).
// Deliveries for one device are serialized and each reads state under the
// device lock, so the last delivery always carries the latest state.
func (s *Service) deliver(deviceID string, id uint64) {
	lock := s.deviceLock(deviceID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	user, err := s.CurrentUser(ctx, deviceID)
	if err != nil {
		slog.Error("auth_state_read_failed", "device_id", deviceID, "error", err)
		user = nil
	}

	s.mu.Lock()
	var fns []func(*identity.ProviderUser)
	for wid, fn := range s.watchers[deviceID] {
		if id == 0 || wid == id {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

func toProviderUser(acc domain.Account) *identity.ProviderUser {
	return &identity.ProviderUser{
		UID:           acc.ID,
		Email:         acc.Email,
		EmailVerified: acc.EmailVerified,
		BusinessID:    acc.BusinessID,
	}
}
