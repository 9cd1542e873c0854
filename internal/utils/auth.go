package utils

import "context"

type contextKey string

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Identity is the authenticated caller as issued by the auth provider.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	Role        string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

// SetUserContext sets user info into context (called by middleware)
func SetUserContext(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, id.Email)
	ctx = context.WithValue(ctx, UserNameKey, id.DisplayName)
	ctx = context.WithValue(ctx, UserRoleKey, id.Role)
	return ctx
}

// GetUserIDFromContext retrieves userID safely
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	return id, ok && id != ""
}

func GetUserEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func GetUserNameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(UserNameKey).(string)
	return name
}

func GetUserRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// IdentityFromContext rebuilds the caller identity. ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	uid, ok := GetUserIDFromContext(ctx)
	if !ok {
		return Identity{}, false
	}
	return Identity{
		UserID:      uid,
		Email:       GetUserEmailFromContext(ctx),
		DisplayName: GetUserNameFromContext(ctx),
		Role:        GetUserRoleFromContext(ctx),
	}, true
}
