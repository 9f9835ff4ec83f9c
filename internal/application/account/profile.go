package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/go-account-api/internal/domain"
)

const imagePrefix = "user_images/"

func (s *service) Profile(ctx context.Context, callerUID, userID string) (*AuthResult, error) {
	u, err := s.owned(ctx, callerUID, userID)
	if err != nil {
		return nil, err
	}
	return s.withTokens(ctx, u)
}

func (s *service) UpdateInformation(ctx context.Context, callerUID string, req domain.UpdateInformationRequest) (*domain.User, error) {
	u, err := s.owned(ctx, callerUID, req.ID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.UserName != nil {
		updates[domain.FieldUserName] = strings.TrimSpace(*req.UserName)
	}
	if req.DateOfBirth != nil {
		updates[domain.FieldDateOfBirth] = *req.DateOfBirth
	}
	if req.Gender != nil {
		updates[domain.FieldGender] = *req.Gender
	}
	if req.PhoneNumber != nil {
		updates[domain.FieldPhoneNumber] = *req.PhoneNumber
	}
	if req.Location != nil {
		updates[domain.FieldLocation] = *req.Location
	}
	if len(updates) == 0 {
		return s.present(ctx, u), nil
	}
	updated, err := s.users.Update(ctx, u.UserID, updates)
	if err != nil {
		return nil, err
	}
	return s.present(ctx, updated), nil
}

// UpdateImage stores img and points the avatar or background at its object
// key. The replaced object is removed best-effort.
func (s *service) UpdateImage(ctx context.Context, callerUID, userID string, img Image) (*domain.User, bool, error) {
	if img.Body == nil || img.Filename == "" {
		return nil, false, ErrNoFile
	}
	u, err := s.owned(ctx, callerUID, userID)
	if err != nil {
		return nil, false, err
	}

	avatar := strings.Contains(strings.ToLower(img.Filename), "avatar")
	field, previous := domain.FieldBackgroundURL, u.BackgroundURL
	if avatar {
		field, previous = domain.FieldPhotoURL, u.PhotoURL
	}

	contentType := img.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromName(img.Filename)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, false, fmt.Errorf("unsupported image type %q: %w", contentType, domain.ErrBadRequest)
	}

	name := sanitizeFilename(img.Filename)
	key := fmt.Sprintf("%s%s/%d_%s", imagePrefix, u.UserID, s.now().UTC().UnixMilli(), name)
	if err := s.blobs.Upload(ctx, key, img.Body, contentType); err != nil {
		return nil, false, fmt.Errorf("upload image: %w", err)
	}

	updated, err := s.users.Update(ctx, u.UserID, map[string]interface{}{field: key})
	if err != nil {
		return nil, false, err
	}
	if previous != nil {
		s.removeImage(ctx, *previous)
	}
	return s.present(ctx, updated), avatar, nil
}

// present returns a copy of u whose stored image keys are replaced by
// freshly signed URLs. Foreign URLs such as provider photos pass through.
func (s *service) present(ctx context.Context, u *domain.User) *domain.User {
	out := *u
	out.PhotoURL = s.signedImage(ctx, u.PhotoURL)
	out.BackgroundURL = s.signedImage(ctx, u.BackgroundURL)
	return &out
}

func (s *service) signedImage(ctx context.Context, stored *string) *string {
	if stored == nil {
		return nil
	}
	key, ok := objectKeyFromURL(*stored)
	if !ok {
		return stored
	}
	signed, err := s.blobs.SignedURL(ctx, key, s.imageURLTTL)
	if err != nil {
		slog.Warn("could not sign image url", "key", key, "err", err)
		return nil
	}
	return &signed
}

// removeImage deletes an object we own. URLs pointing elsewhere, such as a
// provider photo, are left alone.
func (s *service) removeImage(ctx context.Context, rawURL string) {
	key, ok := objectKeyFromURL(rawURL)
	if !ok {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		slog.Warn("could not delete replaced image", "key", key, "err", err)
	}
}

func objectKeyFromURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	i := strings.Index(u.Path, imagePrefix)
	if i < 0 {
		return "", false
	}
	key := u.Path[i:]
	if len(key) == len(imagePrefix) {
		return "", false
	}
	return key, true
}

func contentTypeFromName(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// sanitizeFilename strips directory components and keeps only alphanumerics,
// dot, dash and underscore so names are safe inside object keys.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}

