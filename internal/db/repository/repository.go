// Package repository holds the PostgreSQL data access for content and its
// dependents. Repositories are stateless: each call names the unit of work
// (pool or transaction) it runs against.
package repository

// FingerprintConstraint is the unique index guarding content fingerprints.
const FingerprintConstraint = "content_items_fingerprint_key"

// Repositories bundles every repository the services use.
type Repositories struct {
	Content       ContentRepository
	Comments      CommentRepository
	Likes         LikeRepository
	Notifications NotificationRepository
	Playlists     PlaylistRepository
	Subscriptions SubscriptionRepository
	Orphans       OrphanedBlobRepository
}

// New returns the PostgreSQL implementations of every repository.
func New() *Repositories {
	return &Repositories{
		Content:       NewContentRepository(),
		Comments:      NewCommentRepository(),
		Likes:         NewLikeRepository(),
		Notifications: NewNotificationRepository(),
		Playlists:     NewPlaylistRepository(),
		Subscriptions: NewSubscriptionRepository(),
		Orphans:       NewOrphanedBlobRepository(),
	}
}
