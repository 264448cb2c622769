package tracker

import (
	"context"
	"fmt"
	"strings"

	"tinytrack.org/internal/ids"
)

// Administrative operations. All of them require the administration
// permission on the actor's global role, except the tag listings which any
// active account may read.

// CreateUserInput carries the fields of a new account. PasswordHash is the
// already hashed credential; hashing happens at the boundary so the domain
// layer never sees plaintext passwords.
type CreateUserInput struct {
	Email        string
	FirstName    string
	LastName     string
	RoleID       string
	PasswordHash string
}

// CreateUser registers a new account.
func (s *Service) CreateUser(ctx context.Context, actor User, in CreateUserInput) (User, error) {
	if !s.eval.IsAdmin(actor) {
		return User{}, ErrAccessDenied
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if in.RoleID == "" {
		return User{}, fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	ts := s.now()
	u := User{
		ID:           ids.New(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		RoleID:       in.RoleID,
		PasswordHash: in.PasswordHash,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// DeleteUser soft-deletes the account. The row stays behind so activity
// attribution keeps resolving; permission checks deny the account from now
// on and fan-out skips it.
func (s *Service) DeleteUser(ctx context.Context, actor User, userID string) error {
	if !s.eval.IsAdmin(actor) {
		return ErrAccessDenied
	}
	if userID == actor.ID {
		return fmt.Errorf("%w: cannot delete own account", ErrInvalidInput)
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return err
	}
	return s.users.SoftDelete(ctx, userID)
}

// ListUsers returns every account, deleted ones included.
func (s *Service) ListUsers(ctx context.Context, actor User) ([]User, error) {
	if !s.eval.IsAdmin(actor) {
		return nil, ErrAccessDenied
	}
	return s.users.List(ctx)
}

// ListTags returns the whole tag catalogue.
func (s *Service) ListTags(ctx context.Context, actor User) ([]Tag, error) {
	if actor.Deleted {
		return nil, ErrAccessDenied
	}
	return s.tags.List(ctx)
}

// ListTagGroup returns the child tags of the named group.
func (s *Service) ListTagGroup(ctx context.Context, actor User, groupName string) ([]Tag, error) {
	if actor.Deleted {
		return nil, ErrAccessDenied
	}
	return s.tags.ListGroup(ctx, groupName)
}

// CreateTag adds a tag to the catalogue. A non-group tag must reference an
// existing group.
func (s *Service) CreateTag(ctx context.Context, actor User, in Tag) (Tag, error) {
	if !s.eval.IsAdmin(actor) {
		return Tag{}, ErrAccessDenied
	}
	if strings.TrimSpace(in.Name) == "" {
		return Tag{}, fmt.Errorf("%w: tag name is required", ErrInvalidInput)
	}
	if !in.Group && in.ParentID == "" {
		return Tag{}, fmt.Errorf("%w: tag must belong to a group", ErrInvalidInput)
	}
	if in.ParentID != "" {
		parent, err := s.tags.Get(ctx, in.ParentID)
		if err != nil {
			return Tag{}, err
		}
		if !parent.Group {
			return Tag{}, fmt.Errorf("%w: parent %s is not a group", ErrInvalidInput, in.ParentID)
		}
	}
	ts := s.now()
	t := Tag{
		ID:        ids.New(),
		ParentID:  in.ParentID,
		Name:      strings.TrimSpace(in.Name),
		BgColor:   in.BgColor,
		RoleLimit: in.RoleLimit,
		Group:     in.Group,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.tags.Create(ctx, t); err != nil {
		return Tag{}, err
	}
	return t, nil
}

// UpdateTag changes the tag's name, colour or role limit. Group membership
// is fixed after creation.
func (s *Service) UpdateTag(ctx context.Context, actor User, tagID string, name, bgColor string, roleLimit int) (Tag, error) {
	if !s.eval.IsAdmin(actor) {
		return Tag{}, ErrAccessDenied
	}
	t, err := s.tags.Get(ctx, tagID)
	if err != nil {
		return Tag{}, err
	}
	if strings.TrimSpace(name) != "" {
		t.Name = strings.TrimSpace(name)
	}
	if bgColor != "" {
		t.BgColor = bgColor
	}
	if roleLimit >= 0 {
		t.RoleLimit = roleLimit
	}
	t.UpdatedAt = s.now()
	if err := s.tags.Update(ctx, t); err != nil {
		return Tag{}, err
	}
	return t, nil
}

// SeedTags installs the built-in tag catalogue, skipping tags that already
// exist. Safe to run on every boot.
func (s *Service) SeedTags(ctx context.Context) error {
	for _, t := range BuiltinTags() {
		if _, err := s.tags.Get(ctx, t.ID); err == nil {
			continue
		}
		ts := s.now()
		t.CreatedAt = ts
		t.UpdatedAt = ts
		if err := s.tags.Create(ctx, t); err != nil {
			return fmt.Errorf("seed tag %s: %w", t.ID, err)
		}
	}
	return nil
}
