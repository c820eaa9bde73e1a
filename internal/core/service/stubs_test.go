package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// ── users ─────────────────────────────────────────────────────────────────────

type stubUserRepo struct {
	mu     sync.Mutex
	seq    int
	users  map[string]*domain.User
	failOn map[string]error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User), failOn: make(map[string]error)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.OTP != nil {
		otp := *u.OTP
		clone.OTP = &otp
	}
	clone.AuthProviders = append([]domain.AuthProvider{}, u.AuthProviders...)
	clone.LoginHistory = append([]domain.LoginRecord{}, u.LoginHistory...)
	return &clone
}

func (r *stubUserRepo) fail(op string) error { return r.failOn[op] }

func (r *stubUserRepo) get(id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// put stores u directly, bypassing uniqueness checks. Test setup only.
func (r *stubUserRepo) put(u *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == "" {
		r.seq++
		u.ID = fmt.Sprintf("u%d", r.seq)
	}
	r.users[u.ID] = cloneUser(u)
	return cloneUser(u)
}

func (r *stubUserRepo) snapshot(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneUser(r.users[id])
}

func (r *stubUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("Create"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.seq++
	copy := cloneUser(user)
	copy.ID = fmt.Sprintf("u%d", r.seq)
	r.users[copy.ID] = copy
	return cloneUser(copy), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(id)
	return cloneUser(u), err
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("FindByEmail"); err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByProvider(_ context.Context, provider, providerID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.HasProvider(provider, providerID) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByResetToken(_ context.Context, tokenHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if tokenHash != "" && u.PasswordResetToken == tokenHash {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) sorted(keep func(*domain.User) bool) []*domain.User {
	var out []*domain.User
	for _, u := range r.users {
		if keep(u) {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *stubUserRepo) ListPendingApproval(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(u *domain.User) bool { return u.State() == domain.StatePendingApproval }), nil
}

func (r *stubUserRepo) ListApprovers(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(u *domain.User) bool {
		return u.Role == domain.RoleAdmin && u.IsApproved && u.IsActive
	}), nil
}

func (r *stubUserRepo) SetOTP(_ context.Context, userID string, otp domain.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return err
	}
	u.OTP = &otp
	return nil
}

func (r *stubUserRepo) ConsumeOTP(_ context.Context, userID, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return false, err
	}
	if u.OTP == nil || u.OTP.Code != code || u.OTP.ExpiresAt.Before(now) {
		return false, nil
	}
	u.OTP = nil
	u.EmailVerified = true
	return true, nil
}

func (r *stubUserRepo) SetResetToken(_ context.Context, userID, tokenHash string, expiry time.Time, pending bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return err
	}
	u.PasswordResetToken = tokenHash
	u.PasswordResetExpiry = &expiry
	u.PasswordResetPending = pending
	return nil
}

func (r *stubUserRepo) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, passwordHash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PasswordResetToken != tokenHash || u.PasswordResetExpiry == nil || u.PasswordResetExpiry.Before(now) {
			continue
		}
		u.PasswordHash = passwordHash
		u.PasswordResetToken = ""
		u.PasswordResetExpiry = nil
		u.PasswordResetPending = false
		u.TokenVersion++
		return cloneUser(u), nil
	}
	return nil, domain.ErrResetTokenInvalid
}

func (r *stubUserRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	u.TokenVersion++
	return nil
}

func (r *stubUserRepo) IncrementTokenVersion(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return 0, err
	}
	u.TokenVersion++
	return u.TokenVersion, nil
}

func (r *stubUserRepo) Approve(_ context.Context, userID string, role domain.Role, approvedBy string, at time.Time) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return nil, err
	}
	if u.State() != domain.StatePendingApproval {
		return nil, domain.ErrNotPendingApproval
	}
	u.Role = role
	u.IsApproved = true
	u.ApprovedBy = approvedBy
	u.ApprovedAt = &at
	return cloneUser(u), nil
}

func (r *stubUserRepo) SetActive(_ context.Context, userID string, active bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return nil, err
	}
	u.IsActive = active
	return cloneUser(u), nil
}

func (r *stubUserRepo) AddProvider(_ context.Context, userID string, link domain.AuthProvider) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return nil, err
	}
	if !u.HasProvider(link.Provider, link.ProviderID) {
		u.AuthProviders = append(u.AuthProviders, link)
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) ClaimUnverified(_ context.Context, userID string, link domain.AuthProvider) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return nil, err
	}
	if u.EmailVerified {
		return nil, domain.ErrAlreadyVerified
	}
	u.EmailVerified = true
	u.PasswordHash = ""
	u.OTP = nil
	u.PasswordResetToken = ""
	u.PasswordResetExpiry = nil
	u.PasswordResetPending = false
	u.TokenVersion++
	if !u.HasProvider(link.Provider, link.ProviderID) {
		u.AuthProviders = append(u.AuthProviders, link)
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) AppendLogin(_ context.Context, userID string, record domain.LoginRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.get(userID)
	if err != nil {
		return err
	}
	u.LoginHistory = append(u.LoginHistory, record)
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.get(userID); err != nil {
		return err
	}
	delete(r.users, userID)
	return nil
}

// ── profiles ──────────────────────────────────────────────────────────────────

type stubProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]domain.RoleProfile
	saveErr  error
}

func newStubProfileRepo() *stubProfileRepo {
	return &stubProfileRepo{profiles: make(map[string]domain.RoleProfile)}
}

func (r *stubProfileRepo) FindByUserID(_ context.Context, userID string) (domain.RoleProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return p, nil
}

func (r *stubProfileRepo) Save(_ context.Context, profile domain.RoleProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.profiles[profile.OwnerID()] = profile
	return nil
}

func (r *stubProfileRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, userID)
	return nil
}

func (r *stubProfileRepo) get(userID string) domain.RoleProfile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profiles[userID]
}

// ── invitations ───────────────────────────────────────────────────────────────

type stubInvitationRepo struct {
	mu   sync.Mutex
	seq  int
	byID map[string]*domain.Invitation
}

func newStubInvitationRepo() *stubInvitationRepo {
	return &stubInvitationRepo{byID: make(map[string]*domain.Invitation)}
}

func cloneInvitation(i *domain.Invitation) *domain.Invitation {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Permissions = append([]string(nil), i.Permissions...)
	return &clone
}

func (r *stubInvitationRepo) Create(_ context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	copy := cloneInvitation(inv)
	copy.ID = fmt.Sprintf("inv%d", r.seq)
	r.byID[copy.ID] = copy
	return cloneInvitation(copy), nil
}

func (r *stubInvitationRepo) FindByID(_ context.Context, id string) (*domain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	return cloneInvitation(inv), nil
}

func (r *stubInvitationRepo) byToken(token string) *domain.Invitation {
	for _, inv := range r.byID {
		if inv.Token == token {
			return inv
		}
	}
	return nil
}

func (r *stubInvitationRepo) FindByToken(_ context.Context, token string) (*domain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv := r.byToken(token)
	if inv == nil {
		return nil, domain.ErrInvitationNotFound
	}
	return cloneInvitation(inv), nil
}

func (r *stubInvitationRepo) List(_ context.Context) ([]*domain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Invitation, 0, len(r.byID))
	for _, inv := range r.byID {
		out = append(out, cloneInvitation(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubInvitationRepo) Update(_ context.Context, inv *domain.Invitation) (*domain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[inv.ID]
	if !ok {
		return nil, domain.ErrInvitationNotFound
	}
	if cur.Used {
		return nil, domain.ErrInvitationUsed
	}
	copy := cloneInvitation(inv)
	copy.Token = cur.Token
	copy.Used = false
	r.byID[inv.ID] = copy
	return cloneInvitation(copy), nil
}

func (r *stubInvitationRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return domain.ErrInvitationNotFound
	}
	if cur.Used {
		return domain.ErrInvitationUsed
	}
	delete(r.byID, id)
	return nil
}

func (r *stubInvitationRepo) MarkUsed(_ context.Context, token string, now time.Time) (*domain.Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv := r.byToken(token)
	if inv == nil {
		return nil, domain.ErrInvitationNotFound
	}
	if err := inv.Validate(now); err != nil {
		return nil, err
	}
	inv.Used = true
	inv.UsedAt = &now
	return cloneInvitation(inv), nil
}

// ── notifier / throttle ───────────────────────────────────────────────────────

type sentMessage struct {
	To       string
	Template ports.Template
	Params   map[string]string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, to string, tmpl ports.Template, params map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{To: to, Template: tmpl, Params: params})
	return n.err
}

// last returns the most recent message of tmpl sent to to.
func (n *recordingNotifier) last(to string, tmpl ports.Template) (sentMessage, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].To == to && n.sent[i].Template == tmpl {
			return n.sent[i], true
		}
	}
	return sentMessage{}, false
}

func (n *recordingNotifier) count(tmpl ports.Template) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.Template == tmpl {
			c++
		}
	}
	return c
}

type stubThrottle struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (t *stubThrottle) Allow(_ context.Context, key string, _ time.Duration) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return false, t.err
	}
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if t.seen[key] {
		return false, nil
	}
	t.seen[key] = true
	return true, nil
}

// ── fixture ───────────────────────────────────────────────────────────────────

// testClock is a settable time source shared by every component of a fixture.
type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

type fixture struct {
	clock       *testClock
	users       *stubUserRepo
	profiles    *stubProfileRepo
	invitations *stubInvitationRepo
	notifier    *recordingNotifier
	throttle    *stubThrottle

	creds    *CredentialVerifier
	otp      *OTPChallenge
	sessions *SessionTokenIssuer
	approval *ApprovalWorkflow
	social   *SocialLinkResolver
	ledger   *InvitationLedger
	auth     *AuthService
}

var fixtureEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	f := &fixture{
		clock:       &testClock{cur: fixtureEpoch},
		users:       newStubUserRepo(),
		profiles:    newStubProfileRepo(),
		invitations: newStubInvitationRepo(),
		notifier:    &recordingNotifier{},
		throttle:    &stubThrottle{},
	}
	log := zerolog.Nop()
	opts := Options{AppBaseURL: "https://hotel.test/", Clock: f.clock.Now}

	f.creds = NewCredentialVerifier(bcrypt.MinCost)
	f.otp = NewOTPChallenge(f.users, DefaultOTPTTL, f.clock.Now)
	f.sessions = NewSessionTokenIssuer(f.users, "test-secret", time.Hour, f.clock.Now)
	f.approval = NewApprovalWorkflow(f.users, f.profiles, f.otp, f.creds, f.notifier, opts, log)
	f.social = NewSocialLinkResolver(f.users, f.profiles, opts, log)
	f.ledger = NewInvitationLedger(f.invitations, f.users, f.profiles, f.creds, f.otp, f.notifier, opts, log)
	f.auth = NewAuthService(f.users, f.profiles, f.creds, f.otp, f.sessions, f.approval, f.social, f.notifier, f.throttle, opts, log)
	return f
}

var adminActor = ports.Actor{UserID: "admin-1", Role: domain.RoleAdmin}

// seedUser stores an account with password directly in the repo.
func (f *fixture) seedUser(email, password string, role domain.Role, mutate func(*domain.User)) *domain.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	u := &domain.User{
		Name:          "Seeded",
		Email:         email,
		PasswordHash:  string(hash),
		Role:          role,
		EmailVerified: true,
		IsApproved:    true,
		IsActive:      true,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}
	if mutate != nil {
		mutate(u)
	}
	return f.users.put(u)
}

// otpFor returns the last verification code mailed to email.
func (f *fixture) otpFor(email string) string {
	msg, ok := f.notifier.last(email, ports.TemplateEmailOTP)
	if !ok {
		return ""
	}
	return msg.Params["code"]
}
