package auth

import "context"

type contextKey string

const (
	contextKeyFamily  contextKey = "auth.family_id"
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
)

// WithSession stores the authenticated session details in context.
func WithSession(ctx context.Context, familyID string, role Role, userID string) context.Context {
	ctx = context.WithValue(ctx, contextKeyFamily, familyID)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, userID)
	return ctx
}

// FamilyIDFromContext extracts the family partition id from context.
func FamilyIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyFamily)
	if familyID, ok := value.(string); ok {
		return familyID
	}
	return ""
}

// RoleFromContext extracts the role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// UserIDFromContext extracts the acting user id from context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeySubject)
	if userID, ok := value.(string); ok {
		return userID
	}
	return ""
}
