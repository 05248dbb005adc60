package sn

import (
	"context"
	"strings"

	"sn-go/internal/model"
)

// SearchLimit caps the number of users returned by SearchUsers.
const SearchLimit = 20

// NewUser describes an account to register. Password has already been
// checked by the caller; the core only hashes it.
type NewUser struct {
	Name         string
	Username     string
	Email        string
	Password     string
	ProfileImage *Upload
}

// RegisterUser creates an account. Username and email must be unused.
// The optional profile image is uploaded before the user document is written.
func (s *SNService) RegisterUser(ctx context.Context, nu NewUser) (*model.User, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	username := strings.TrimSpace(nu.Username)
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	if username == "" || email == "" {
		return nil, invalidInput("username and email are required")
	}

	if existing, err := s.store.FindUserByUsername(ctx, username); err != nil {
		return nil, storeErr("checking username", err)
	} else if existing != nil {
		return nil, conflict("username %q is taken", username)
	}
	if existing, err := s.store.FindUserByEmail(ctx, email); err != nil {
		return nil, storeErr("checking email", err)
	} else if existing != nil {
		return nil, conflict("email %q is already registered", email)
	}

	hash, err := s.hashPassword(nu.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           s.idgen.New(),
		Username:     username,
		Email:        email,
		Name:         strings.TrimSpace(nu.Name),
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	create := func(ctx context.Context, fresh []model.MediaRef) ([]model.MediaRef, error) {
		if len(fresh) > 0 {
			u.ProfileImage = fresh[0]
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, storeErr("creating user", err)
		}
		return nil, nil
	}
	if _, err := s.lifecycle.ReplaceAssets(ctx, Owner{Kind: "user", ID: u.ID}, uploads(asImage(nu.ProfileImage)), create); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user", u.ID, "username", u.Username)
	return u, nil
}

// IsUsernameAvailable reports whether no account uses username.
func (s *SNService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	username = strings.TrimSpace(username)
	if username == "" {
		return false, invalidInput("username is required")
	}
	u, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return false, storeErr("checking username", err)
	}
	return u == nil, nil
}

// GetUser returns a user with follower and following sets.
func (s *SNService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	return s.requireUser(ctx, userID)
}

// SearchUsers returns up to SearchLimit users whose name contains query.
func (s *SNService) SearchUsers(ctx context.Context, query string) ([]*Author, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	query = strings.TrimSpace(query)
	if query == "" {
		return []*Author{}, nil
	}
	users, err := s.store.SearchUsersByName(ctx, query, SearchLimit)
	if err != nil {
		return nil, storeErr("searching users", err)
	}
	out := make([]*Author, 0, len(users))
	for _, u := range users {
		out = append(out, newAuthor(u))
	}
	return out, nil
}

// ProfileChanges is a partial profile update. Nil fields are left alone.
// Password and ConfirmPassword must match when Password is set.
type ProfileChanges struct {
	Name            *string
	Bio             *string
	Links           *model.SocialLinks
	Password        string
	ConfirmPassword string
	ProfileImage    *Upload
	CoverImage      *Upload
}

// UpdateProfile applies changes to a user in one document write. New images
// are uploaded first and the images they replace are deleted afterwards.
func (s *SNService) UpdateProfile(ctx context.Context, userID string, ch ProfileChanges) (*model.User, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if ch.Password != "" && ch.Password != ch.ConfirmPassword {
		return nil, invalidInput("password confirmation does not match")
	}

	upd := model.UserUpdate{Name: ch.Name, Bio: ch.Bio, Links: ch.Links}
	if ch.Password != "" {
		hash, err := s.hashPassword(ch.Password)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}
	if upd.IsEmpty() && ch.ProfileImage == nil && ch.CoverImage == nil {
		return nil, ErrNoUpdate
	}
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	// Remember which fresh reference lands in which slot.
	var slots []model.ImageSlot
	if ch.ProfileImage != nil {
		slots = append(slots, model.ProfileImageSlot)
	}
	if ch.CoverImage != nil {
		slots = append(slots, model.CoverImageSlot)
	}

	swap := func(ctx context.Context, fresh []model.MediaRef) ([]model.MediaRef, error) {
		for i, slot := range slots {
			setImage(&upd, slot, fresh[i])
		}
		prev, err := s.store.UpdateUser(ctx, userID, upd)
		if err != nil {
			return nil, storeErr("updating user", err)
		}
		stale := make([]model.MediaRef, 0, len(slots))
		for _, slot := range slots {
			stale = append(stale, prev.Image(slot))
		}
		return stale, nil
	}
	if _, err := s.lifecycle.ReplaceAssets(ctx, Owner{Kind: "user", ID: userID}, uploads(asImage(ch.ProfileImage), asImage(ch.CoverImage)), swap); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", "user", userID)
	return s.requireUser(ctx, userID)
}

// ReplaceUserImage uploads a new profile or cover image for userID and
// deletes the one it replaces.
func (s *SNService) ReplaceUserImage(ctx context.Context, userID string, slot model.ImageSlot, up Upload) (*model.User, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	_, err := s.lifecycle.ReplaceAsset(ctx, Owner{Kind: "user", ID: userID}, *asImage(&up), func(ctx context.Context, fresh model.MediaRef) (model.MediaRef, error) {
		var upd model.UserUpdate
		setImage(&upd, slot, fresh)
		prev, err := s.store.UpdateUser(ctx, userID, upd)
		if err != nil {
			return model.MediaRef{}, storeErr("updating user image", err)
		}
		return prev.Image(slot), nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user image replaced", "user", userID, "slot", string(slot))
	return s.requireUser(ctx, userID)
}

// RemoveUserImage clears a profile or cover image. The reference is cleared
// before the asset is deleted.
func (s *SNService) RemoveUserImage(ctx context.Context, userID string, slot model.ImageSlot) (*model.User, error) {
	ctx, cancel := s.begin(ctx)
	defer cancel()

	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if _, err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	_, err := s.lifecycle.ReplaceAssets(ctx, Owner{Kind: "user", ID: userID}, nil, func(ctx context.Context, _ []model.MediaRef) ([]model.MediaRef, error) {
		var upd model.UserUpdate
		setImage(&upd, slot, model.MediaRef{})
		prev, err := s.store.UpdateUser(ctx, userID, upd)
		if err != nil {
			return nil, storeErr("clearing user image", err)
		}
		return []model.MediaRef{prev.Image(slot)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user image removed", "user", userID, "slot", string(slot))
	return s.requireUser(ctx, userID)
}

func checkSlot(slot model.ImageSlot) error {
	if slot != model.ProfileImageSlot && slot != model.CoverImageSlot {
		return invalidInput("unknown image slot %q", slot)
	}
	return nil
}

func setImage(upd *model.UserUpdate, slot model.ImageSlot, ref model.MediaRef) {
	if slot == model.CoverImageSlot {
		upd.CoverImage = &ref
		return
	}
	upd.ProfileImage = &ref
}

func (s *SNService) hashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	if s.hasher == nil {
		return "", invalidInput("passwords are not accepted by this service")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", invalidInput("hashing password: %v", err)
	}
	return hash, nil
}
