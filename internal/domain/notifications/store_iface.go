package notifications

import "context"

type StoreAPI interface {
	Create(ctx context.Context, n Notification) error
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	Count(ctx context.Context, userID string, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
