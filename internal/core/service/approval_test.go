package service

import (
	"context"
	"errors"
	"testing"

	"github.com/innkeep/hotel-system/internal/core/domain"
	"github.com/innkeep/hotel-system/internal/core/ports"
)

// pendingStaff registers a staff user and verifies their email.
func pendingStaff(t *testing.T, f *fixture, email string) *domain.User {
	t.Helper()
	ctx := context.Background()
	if _, err := f.auth.Register(ctx, ports.RegisterInput{Name: "Stan", Email: email, Password: "password1", Role: "staff"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	user, err := f.auth.VerifyEmail(ctx, email, f.otpFor(email))
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	return user
}

func TestApprovalWorkflow_VerifyNotifiesApproversOnce(t *testing.T) {
	f := newFixture()
	f.seedUser("admin@x.com", "password1", domain.RoleAdmin, nil)
	f.seedUser("off@x.com", "password1", domain.RoleAdmin, func(u *domain.User) { u.IsActive = false })

	user := pendingStaff(t, f, "s@x.com")
	if user.State() != domain.StatePendingApproval {
		t.Fatalf("expected pending approval, got %s", user.State())
	}
	if got := f.notifier.count(ports.TemplateApprovalRequested); got != 1 {
		t.Fatalf("expected one approver notification, got %d", got)
	}
	if _, ok := f.notifier.last("admin@x.com", ports.TemplateApprovalRequested); !ok {
		t.Fatalf("expected active admin to be notified")
	}

	_, err := f.auth.VerifyEmail(context.Background(), "s@x.com", "123456")
	if !errors.Is(err, domain.ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if got := f.notifier.count(ports.TemplateApprovalRequested); got != 1 {
		t.Fatalf("expected no further approver notification, got %d", got)
	}
}

func TestApprovalWorkflow_GuestNeverPending(t *testing.T) {
	f := newFixture()
	f.seedUser("admin@x.com", "password1", domain.RoleAdmin, nil)
	ctx := context.Background()

	guest, err := f.auth.Register(ctx, ports.RegisterInput{Name: "Gail", Email: "g@x.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !guest.IsApproved {
		t.Fatalf("expected guest to be approved at creation")
	}
	verified, err := f.auth.VerifyEmail(ctx, "g@x.com", f.otpFor("g@x.com"))
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if verified.State() != domain.StateActive {
		t.Fatalf("expected guest to be active after verification, got %s", verified.State())
	}
	if f.notifier.count(ports.TemplateApprovalRequested) != 0 {
		t.Fatalf("expected no approval request for guest")
	}
	pending, _ := f.approval.ListPending(ctx, adminActor)
	if len(pending) != 0 {
		t.Fatalf("expected no pending users, got %d", len(pending))
	}
}

func TestApprovalWorkflow_Approve(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := pendingStaff(t, f, "s@x.com")

	pending, err := f.approval.ListPending(ctx, adminActor)
	if err != nil || len(pending) != 1 || pending[0].ID != user.ID {
		t.Fatalf("expected user in pending list, got %v %v", pending, err)
	}

	manager := domain.RoleManager
	approved, err := f.approval.Approve(ctx, adminActor, user.ID, &manager)
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if !approved.IsApproved || approved.Role != domain.RoleManager || approved.ApprovedBy != adminActor.UserID {
		t.Fatalf("unexpected approved user: %+v", approved)
	}
	if approved.ApprovedAt == nil || !approved.ApprovedAt.Equal(fixtureEpoch) {
		t.Fatalf("expected approval timestamp, got %v", approved.ApprovedAt)
	}
	if _, ok := f.profiles.get(user.ID).(domain.ManagerProfile); !ok {
		t.Fatalf("expected manager profile, got %T", f.profiles.get(user.ID))
	}
	if _, ok := f.notifier.last("s@x.com", ports.TemplateAccountApproved); !ok {
		t.Fatalf("expected approval mail")
	}

	if _, err := f.approval.Approve(ctx, adminActor, user.ID, nil); !errors.Is(err, domain.ErrNotPendingApproval) {
		t.Fatalf("expected ErrNotPendingApproval on second approve, got %v", err)
	}
}

func TestApprovalWorkflow_ApproveRejectsUnverifiedAndNonAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user, err := f.auth.Register(ctx, ports.RegisterInput{Name: "Stan", Email: "s@x.com", Password: "password1", Role: "staff"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := f.approval.Approve(ctx, adminActor, user.ID, nil); !errors.Is(err, domain.ErrNotPendingApproval) {
		t.Fatalf("expected unverified user to be unapprovable, got %v", err)
	}
	staff := ports.Actor{UserID: "x", Role: domain.RoleStaff}
	if _, err := f.approval.Approve(ctx, staff, user.ID, nil); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.approval.ListPending(ctx, staff); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestApprovalWorkflow_DeactivateReactivate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.seedUser("g@x.com", "password1", domain.RoleGuest, nil)

	if _, err := f.approval.Deactivate(ctx, adminActor, u.ID); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}
	_, err := f.auth.Login(ctx, ports.LoginInput{Email: "g@x.com", Password: "password1"})
	if !errors.Is(err, domain.ErrAccountDeactivated) {
		t.Fatalf("expected ErrAccountDeactivated, got %v", err)
	}
	if id, _ := domain.DetailOf(err); id != u.ID {
		t.Fatalf("expected user id on error, got %q", id)
	}

	if _, err := f.approval.Reactivate(ctx, adminActor, u.ID); err != nil {
		t.Fatalf("Reactivate returned error: %v", err)
	}
	if _, err := f.auth.Login(ctx, ports.LoginInput{Email: "g@x.com", Password: "password1"}); err != nil {
		t.Fatalf("expected login after reactivation, got %v", err)
	}

	self := ports.Actor{UserID: "a1", Role: domain.RoleAdmin}
	if _, err := f.approval.Deactivate(ctx, self, "a1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected admins to be unable to deactivate themselves, got %v", err)
	}
}

func TestApprovalWorkflow_CreateUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	user, err := f.approval.CreateUser(ctx, adminActor, ports.CreateUserInput{
		Name:         "Ada Admin",
		Email:        "ada@x.com",
		Role:         "admin",
		ProfileGrant: domain.ProfileGrant{Permissions: []string{"users"}},
	})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if !user.EmailVerified || !user.IsApproved || !user.PasswordResetPending {
		t.Fatalf("unexpected created user: %+v", user)
	}
	admin, ok := f.profiles.get(user.ID).(domain.AdminProfile)
	if !ok || len(admin.Permissions) != 1 {
		t.Fatalf("expected admin profile with permissions, got %+v", f.profiles.get(user.ID))
	}

	token := resetTokenFrom(t, f, "ada@x.com")
	_, err = f.auth.Login(ctx, ports.LoginInput{Email: "ada@x.com", Password: "whatever1"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected unknown temp password to fail, got %v", err)
	}

	if err := f.auth.ResetPassword(ctx, token, "chosen-pass"); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if _, err := f.auth.Login(ctx, ports.LoginInput{Email: "ada@x.com", Password: "chosen-pass"}); err != nil {
		t.Fatalf("expected login after reset, got %v", err)
	}

	if _, err := f.approval.CreateUser(ctx, adminActor, ports.CreateUserInput{Name: "Dup", Email: "ada@x.com", Role: "staff"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestApprovalWorkflow_ForceReset(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	u := f.seedUser("g@x.com", "password1", domain.RoleGuest, nil)
	token, _, _ := f.sessions.Issue(u)

	if err := f.approval.ForceReset(ctx, adminActor, u.ID); err != nil {
		t.Fatalf("ForceReset returned error: %v", err)
	}
	if _, _, err := f.sessions.Authenticate(ctx, token); !errors.Is(err, domain.ErrSessionInvalid) {
		t.Fatalf("expected existing session to be revoked, got %v", err)
	}

	_, err := f.auth.Login(ctx, ports.LoginInput{Email: "g@x.com", Password: "password1"})
	if !errors.Is(err, domain.ErrResetRequired) {
		t.Fatalf("expected ErrResetRequired, got %v", err)
	}
	if _, redirect := domain.DetailOf(err); redirect != "/reset-password" {
		t.Fatalf("expected reset redirect, got %q", redirect)
	}
}
