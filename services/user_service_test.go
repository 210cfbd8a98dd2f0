package services_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
	"taskflow-project/backend/testutil"
	"taskflow-project/backend/utils"
)

var otpPattern = regexp.MustCompile(`code is (\d{6})`)

func sentOTP(t *testing.T, st *testutil.Stack) string {
	t.Helper()
	sent := st.Mailer.Sent()
	if len(sent) == 0 {
		t.Fatal("no mail sent")
	}
	m := otpPattern.FindStringSubmatch(sent[len(sent)-1].Body)
	if m == nil {
		t.Fatalf("no otp in mail body %q", sent[len(sent)-1].Body)
	}
	return m[1]
}

func wrongOTP(otp string) string {
	if otp == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRegisterAndLogin(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()

	user, token, err := st.UserService.Register(ctx, services.RegisterInput{
		Name: "Ana", Email: "  Ana@Example.com ", Password: "Sup3r$ecret",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ana@example.com" {
		t.Errorf("email not normalised: %q", user.Email)
	}
	if user.Role != models.DefaultUserRole {
		t.Errorf("role = %q, want %q", user.Role, models.DefaultUserRole)
	}
	claims, err := st.Tokens.ValidateToken(token, utils.PurposeAccess)
	if err != nil || claims.UserID != user.ID.Hex() {
		t.Fatalf("token invalid: %v", err)
	}

	if _, _, err := st.UserService.Login(ctx, "ana@example.com", "Sup3r$ecret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := st.UserService.Login(ctx, "ana@example.com", "wrong"); !errors.Is(err, services.ErrUnauthorized) {
		t.Errorf("wrong password: got %v, want ErrUnauthorized", err)
	}
	if _, _, err := st.UserService.Login(ctx, "nobody@example.com", "Sup3r$ecret"); !errors.Is(err, services.ErrUnauthorized) {
		t.Errorf("unknown email: got %v, want ErrUnauthorized", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	st := testutil.NewStack(t)
	st.CreateUser(t, "Ana", "ana@example.com")

	_, _, err := st.UserService.Register(context.Background(), services.RegisterInput{
		Name: "Other", Email: "ANA@example.com", Password: "Sup3r$ecret",
	})
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
}

func TestValidatePassword(t *testing.T) {
	st := testutil.NewStack(t)
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Sup3r$ecret", true},
		{"too short", "S3$ab", false},
		{"no upper case", "sup3r$ecret", false},
		{"no digit", "Super$ecret", false},
		{"no special character", "Sup3rSecret", false},
		{"blacklisted", "Password123!", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := st.UserService.ValidatePassword(tt.password)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, services.ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}
}

func TestPasswordResetFlow(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	st.CreateUser(t, "Ana", "ana@example.com")

	if err := st.UserService.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	otp := sentOTP(t, st)

	resetToken, err := st.UserService.VerifyOTP(ctx, "ana@example.com", otp)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if err := st.UserService.ResetPassword(ctx, resetToken, "N3w$ecretPass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if _, _, err := st.UserService.Login(ctx, "ana@example.com", "N3w$ecretPass"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	// The code is single use.
	if _, err := st.UserService.VerifyOTP(ctx, "ana@example.com", otp); !errors.Is(err, services.ErrValidation) {
		t.Errorf("reused otp: got %v, want ErrValidation", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	st := testutil.NewStack(t)
	if err := st.UserService.RequestPasswordReset(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if n := len(st.Mailer.Sent()); n != 0 {
		t.Fatalf("sent %d mails, want 0", n)
	}
}

func TestPasswordResetMailerFailure(t *testing.T) {
	st := testutil.NewStack(t)
	st.CreateUser(t, "Ana", "ana@example.com")
	st.Mailer.Err = errors.New("relay down")

	err := st.UserService.RequestPasswordReset(context.Background(), "ana@example.com")
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("got %v, want ErrUnavailable", err)
	}
}

func TestVerifyOTPAttemptsExhausted(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	user, _ := st.CreateUser(t, "Ana", "ana@example.com")

	if err := st.UserService.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	otp := sentOTP(t, st)

	for i := 1; i <= 5; i++ {
		if _, err := st.UserService.VerifyOTP(ctx, "ana@example.com", wrongOTP(otp)); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("attempt %d: got %v, want ErrValidation", i, err)
		}
		stored, _ := st.Users.FindByID(ctx, user.ID)
		if stored.ResetOTPAttempts != i {
			t.Fatalf("attempt %d: counter = %d", i, stored.ResetOTPAttempts)
		}
	}

	// Even the right code is refused once the attempts are used up.
	if _, err := st.UserService.VerifyOTP(ctx, "ana@example.com", otp); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	st.CreateUser(t, "Ana", "ana@example.com")

	start := time.Now()
	st.UserService.SetClock(func() time.Time { return start })
	if err := st.UserService.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	otp := sentOTP(t, st)

	st.UserService.SetClock(func() time.Time { return start.Add(11 * time.Minute) })
	if _, err := st.UserService.VerifyOTP(ctx, "ana@example.com", otp); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestResetPasswordRejectsAccessToken(t *testing.T) {
	st := testutil.NewStack(t)
	_, token := st.CreateUser(t, "Ana", "ana@example.com")

	err := st.UserService.ResetPassword(context.Background(), token, "N3w$ecretPass")
	if !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
}

func TestChangePassword(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	user, _ := st.CreateUser(t, "Ana", "ana@example.com")

	if err := st.UserService.ChangePassword(ctx, user.ID, "not-it", "N3w$ecretPass"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("wrong current password: got %v", err)
	}
	if err := st.UserService.ChangePassword(ctx, user.ID, "Sup3r$ecret", "N3w$ecretPass"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := st.UserService.Login(ctx, "ana@example.com", "N3w$ecretPass"); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestUpdateProfileAndSearch(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	user, _ := st.CreateUser(t, "Ana Petrovic", "ana@example.com")
	st.CreateUser(t, "Marko", "marko@example.com")

	bio := "  Backend developer "
	skills := []string{"go", " ", "mongo"}
	updated, err := st.UserService.UpdateProfile(ctx, user.ID, services.ProfileUpdate{Bio: &bio, Skills: &skills})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Bio != "Backend developer" || len(updated.Skills) != 2 {
		t.Fatalf("unexpected profile: %+v", updated)
	}

	found, err := st.UserService.SearchUsers(ctx, "petro")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != user.ID {
		t.Fatalf("search returned %+v", found)
	}
}

func TestDeleteAccount(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	owner, _ := st.CreateUser(t, "Owner", "owner@example.com")
	member, _ := st.CreateUser(t, "Member", "member@example.com")

	project := st.CreateProject(t, owner.ID, "Apollo")
	st.AddCollaborator(t, owner.ID, project.ID, member.ID, models.CollaboratorEditor)
	task, err := st.TaskService.CreateTask(ctx, owner.ID, services.TaskInput{
		Title: "Launch", ProjectID: &project.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if err := st.UserService.DeleteAccount(ctx, owner.ID); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("owner with open tasks: got %v, want ErrConflict", err)
	}

	if _, err := st.TaskService.ChangeStatus(ctx, owner.ID, task.ID, models.StatusCompleted); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	if err := st.UserService.DeleteAccount(ctx, owner.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, err := st.Users.FindByID(ctx, owner.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("user still present: %v", err)
	}
	if _, err := st.Projects.FindByID(ctx, project.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("owned project still present: %v", err)
	}
	if _, err := st.Tasks.FindByID(ctx, task.ID); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("project task still present: %v", err)
	}
}

func TestResetTokenIsSingleUse(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	st.CreateUser(t, "Ana", "ana@example.com")

	issue := func() string {
		t.Helper()
		if err := st.UserService.RequestPasswordReset(ctx, "ana@example.com"); err != nil {
			t.Fatalf("request reset: %v", err)
		}
		token, err := st.UserService.VerifyOTP(ctx, "ana@example.com", sentOTP(t, st))
		if err != nil {
			t.Fatalf("verify otp: %v", err)
		}
		return token
	}

	older := issue()
	newer := issue()
	if err := st.UserService.ResetPassword(ctx, older, "N3w$ecretPass"); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("superseded token: got %v, want ErrUnauthorized", err)
	}
	if err := st.UserService.ResetPassword(ctx, newer, "N3w$ecretPass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if err := st.UserService.ResetPassword(ctx, newer, "An0ther$ecret"); !errors.Is(err, services.ErrUnauthorized) {
		t.Fatalf("spent token: got %v, want ErrUnauthorized", err)
	}
	if _, _, err := st.UserService.Login(ctx, "ana@example.com", "N3w$ecretPass"); err != nil {
		t.Fatalf("login with first reset password: %v", err)
	}
}

func TestDeleteAccountTreatsArchivedTasksAsFinished(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	owner, _ := st.CreateUser(t, "Owner", "owner@example.com")
	project := st.CreateProject(t, owner.ID, "Apollo")

	for _, status := range []models.TaskStatus{models.StatusCompleted, models.StatusArchived} {
		if _, err := st.TaskService.CreateTask(ctx, owner.ID, services.TaskInput{
			Title: string(status), Status: status, ProjectID: &project.ID,
		}); err != nil {
			t.Fatalf("create %s task: %v", status, err)
		}
	}

	if err := st.UserService.DeleteAccount(ctx, owner.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
}
