package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
	"taskflow-project/backend/utils"
)

const (
	otpDigits       = 6
	maxOTPAttempts  = 5
	resetTokenTTL   = 15 * time.Minute
	userSearchLimit = 20
	specialChars    = "!@#$%^&*.,?-_+=()[]{}"
)

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type ProfileUpdate struct {
	Name           *string
	Bio            *string
	Skills         *[]string
	ProfilePicture *string
	Role           *string
}

type UserService struct {
	users     UserRepository
	projects  ProjectRepository
	tasks     TaskRepository
	tokens    *utils.TokenManager
	mailer    Mailer
	blackList map[string]bool
	otpTTL    time.Duration
	now       func() time.Time
}

func NewUserService(
	users UserRepository,
	projects ProjectRepository,
	tasks TaskRepository,
	tokens *utils.TokenManager,
	mailer Mailer,
	blackList map[string]bool,
	otpTTL time.Duration,
) *UserService {
	return &UserService{
		users:     users,
		projects:  projects,
		tasks:     tasks,
		tokens:    tokens,
		mailer:    mailer,
		blackList: blackList,
		otpTTL:    otpTTL,
		now:       time.Now,
	}
}

// Register creates an account and returns it with an access token.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, "", err
	}
	if err := s.ValidatePassword(in.Password); err != nil {
		return nil, "", err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("%w: user with this email already exists", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		Name:      name,
		Email:     email,
		Password:  string(hashedPassword),
		Role:      models.DefaultUserRole,
		Skills:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to save user: %w", err)
	}

	token, err := s.tokens.GenerateToken(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	logging.Logger.Infof("Event ID: USER_REGISTERED, Description: User %s registered", user.ID.Hex())
	return user, token, nil
}

// ValidatePassword enforces length, character classes and the blacklist.
func (s *UserService) ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters long", ErrValidation)
	}

	var hasUpper, hasDigit, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsDigit(char):
			hasDigit = true
		case strings.ContainsRune(specialChars, char):
			hasSpecial = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: password must contain at least one uppercase letter", ErrValidation)
	}
	if !hasDigit {
		return fmt.Errorf("%w: password must contain at least one number", ErrValidation)
	}
	if !hasSpecial {
		return fmt.Errorf("%w: password must contain at least one special character", ErrValidation)
	}
	if s.blackList[password] {
		return fmt.Errorf("%w: password is too common, please choose a stronger one", ErrValidation)
	}
	return nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
		}
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	token, err := s.tokens.GenerateToken(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

func (s *UserService) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	users, err := s.users.Search(ctx, strings.TrimSpace(query), userSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, in ProfileUpdate) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrValidation)
		}
		user.Name = name
	}
	if in.Bio != nil {
		user.Bio = strings.TrimSpace(*in.Bio)
	}
	if in.Skills != nil {
		skills := make([]string, 0, len(*in.Skills))
		for _, skill := range *in.Skills {
			if skill = strings.TrimSpace(skill); skill != "" {
				skills = append(skills, skill)
			}
		}
		user.Skills = skills
	}
	if in.ProfilePicture != nil {
		user.ProfilePicture = strings.TrimSpace(*in.ProfilePicture)
	}
	if in.Role != nil {
		role := strings.TrimSpace(*in.Role)
		if role == "" {
			role = models.DefaultUserRole
		}
		user.Role = role
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id primitive.ObjectID, currentPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return fmt.Errorf("%w: current password is incorrect", ErrValidation)
	}
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}
	return s.setPassword(ctx, user, newPassword)
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}
	user.Password = string(hashed)
	user.ResetOTP = ""
	user.ResetOTPExpiry = time.Time{}
	user.ResetOTPAttempts = 0
	user.ResetTokenID = ""
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// RequestPasswordReset e-mails a one-time code. Unknown addresses succeed
// silently so the endpoint cannot be used to enumerate accounts.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logging.Logger.Infof("Event ID: PASSWORD_RESET_UNKNOWN_EMAIL, Description: Password reset requested for unknown email")
			return nil
		}
		return err
	}

	otp, err := utils.GenerateOTP(otpDigits)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(otp), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash otp: %w", err)
	}

	user.ResetOTP = string(hashed)
	user.ResetOTPExpiry = s.now().UTC().Add(s.otpTTL)
	user.ResetOTPAttempts = 0
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}

	subject := "Your TaskFlow password reset code"
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.\n\nIf you did not request a password reset, you can ignore this email.",
		otp, int(s.otpTTL.Minutes()))
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	logging.Logger.Infof("Event ID: PASSWORD_RESET_OTP_SENT, Description: Reset code sent to user %s", user.ID.Hex())
	return nil
}

// VerifyOTP checks a reset code and exchanges it for a reset token.
func (s *UserService) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: invalid or expired code", ErrValidation)
		}
		return "", err
	}

	if user.ResetOTP == "" || s.now().After(user.ResetOTPExpiry) {
		return "", fmt.Errorf("%w: invalid or expired code", ErrValidation)
	}
	if user.ResetOTPAttempts >= maxOTPAttempts {
		return "", fmt.Errorf("%w: too many attempts, request a new code", ErrValidation)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.ResetOTP), []byte(strings.TrimSpace(otp))); err != nil {
		user.ResetOTPAttempts++
		if err := s.users.Update(ctx, user); err != nil {
			return "", fmt.Errorf("failed to record otp attempt: %w", err)
		}
		return "", fmt.Errorf("%w: invalid or expired code", ErrValidation)
	}

	user.ResetOTP = ""
	user.ResetOTPExpiry = time.Time{}
	user.ResetOTPAttempts = 0
	user.ResetTokenID = uuid.NewString()
	if err := s.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("failed to clear otp: %w", err)
	}

	token, err := s.tokens.GenerateResetToken(user.ID.Hex(), user.Email, user.ResetTokenID, resetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return token, nil
}

func (s *UserService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.tokens.ValidateToken(resetToken, utils.PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("%w: invalid or expired reset token", ErrUnauthorized)
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return fmt.Errorf("%w: invalid or expired reset token", ErrUnauthorized)
	}
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: invalid or expired reset token", ErrUnauthorized)
		}
		return err
	}
	// setPassword clears ResetTokenID, so each token works once.
	if user.ResetTokenID == "" || claims.ID != user.ResetTokenID {
		return fmt.Errorf("%w: reset token has already been used", ErrUnauthorized)
	}
	return s.setPassword(ctx, user, newPassword)
}

// DeleteAccount refuses while the user owns a project with unfinished tasks.
// Otherwise the user leaves every project and task, owned projects are
// removed with their tasks, and the user document is deleted.
func (s *UserService) DeleteAccount(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		return err
	}

	owned, err := s.projects.FindOwnedBy(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch owned projects: %w", err)
	}
	for _, project := range owned {
		tasks, err := s.tasks.Find(ctx, TaskFilter{ProjectID: &project.ID})
		if err != nil {
			return fmt.Errorf("failed to fetch tasks of project %s: %w", project.ID.Hex(), err)
		}
		for _, task := range tasks {
			if !task.Status.Finished() {
				return fmt.Errorf("%w: cannot delete account, project '%s' has unfinished tasks", ErrConflict, project.Name)
			}
		}
	}

	if err := s.projects.RemoveCollaboratorEverywhere(ctx, id); err != nil {
		return fmt.Errorf("failed to remove user from projects: %w", err)
	}
	if err := s.tasks.RemoveAssigneeEverywhere(ctx, id); err != nil {
		return fmt.Errorf("failed to remove user from tasks: %w", err)
	}
	for _, project := range owned {
		if _, err := s.tasks.DeleteByProject(ctx, project.ID); err != nil {
			return fmt.Errorf("failed to delete tasks of project %s: %w", project.ID.Hex(), err)
		}
		if err := s.projects.Delete(ctx, project.ID); err != nil {
			return fmt.Errorf("failed to delete project %s: %w", project.ID.Hex(), err)
		}
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	logging.Logger.Infof("Event ID: ACCOUNT_DELETED, Description: Account %s deleted (%d owned projects removed)", id.Hex(), len(owned))
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return email, nil
}
