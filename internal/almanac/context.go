package almanac

import "context"

type contextKey string

const (
	keyTenantID       contextKey = "almanac_tenant_id"
	keyUserID         contextKey = "almanac_user_id"
	keyConversationID contextKey = "almanac_conversation_id"
)

func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyTenantID, id)
}

func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(keyTenantID).(string); ok {
		return v
	}
	return ""
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyUserID, id)
}

func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(keyUserID).(string); ok {
		return v
	}
	return ""
}

func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyConversationID, id)
}

func GetConversationID(ctx context.Context) string {
	if v, ok := ctx.Value(keyConversationID).(string); ok {
		return v
	}
	return ""
}
