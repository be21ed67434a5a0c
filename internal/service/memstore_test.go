package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/uptube/content-ingestion-go/internal/db"
	"github.com/uptube/content-ingestion-go/internal/db/models"
	"github.com/uptube/content-ingestion-go/internal/db/repository"

	"github.com/google/uuid"
)

// memState is the table data of memStore.
type memState struct {
	items         map[uuid.UUID]models.ContentItem
	comments      map[uuid.UUID]models.Comment
	likes         map[uuid.UUID]models.Like
	notifications map[uuid.UUID]models.Notification
	playlistItems []models.PlaylistItem
	subscriptions map[[2]uuid.UUID]models.Subscription
	orphans       map[string]models.OrphanedBlob
}

func (s memState) clone() memState {
	c := memState{
		items:         make(map[uuid.UUID]models.ContentItem, len(s.items)),
		comments:      make(map[uuid.UUID]models.Comment, len(s.comments)),
		likes:         make(map[uuid.UUID]models.Like, len(s.likes)),
		notifications: make(map[uuid.UUID]models.Notification, len(s.notifications)),
		playlistItems: append([]models.PlaylistItem(nil), s.playlistItems...),
		subscriptions: make(map[[2]uuid.UUID]models.Subscription, len(s.subscriptions)),
		orphans:       make(map[string]models.OrphanedBlob, len(s.orphans)),
	}
	for k, v := range s.items {
		v.AttachedAdIDs = append([]uuid.UUID(nil), v.AttachedAdIDs...)
		c.items[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	for k, v := range s.likes {
		c.likes[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.subscriptions {
		c.subscriptions[k] = v
	}
	for k, v := range s.orphans {
		c.orphans[k] = v
	}
	return c
}

// memStore is an in-memory record store with the guarantees the services
// rely on: a unique fingerprint, atomic transactions and dependent foreign
// keys checked at commit.
type memStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state memState
	fail  map[string]error
	// commitErr, when set, fails the next commit.
	commitErr error
	// blobLocks lists every external id passed to LockBlobs.
	blobLocks []string
}

func newMemStore() *memStore {
	return &memStore{
		state: memState{
			items:         map[uuid.UUID]models.ContentItem{},
			comments:      map[uuid.UUID]models.Comment{},
			likes:         map[uuid.UUID]models.Like{},
			notifications: map[uuid.UUID]models.Notification{},
			subscriptions: map[[2]uuid.UUID]models.Subscription{},
			orphans:       map[string]models.OrphanedBlob{},
		},
		fail: map[string]error{},
	}
}

func (m *memStore) repos() *repository.Repositories {
	return &repository.Repositories{
		Content:       &memContent{m},
		Comments:      &memComments{m},
		Likes:         &memLikes{m},
		Notifications: &memNotifications{m},
		Playlists:     &memPlaylists{m},
		Subscriptions: &memSubscriptions{m},
		Orphans:       &memOrphans{m},
	}
}

func (m *memStore) failOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

// check returns the injected failure for op. Callers hold mu.
func (m *memStore) check(op string) error {
	return m.fail[op]
}

// WithinTx implements db.TxRunner. Transactions are serialized.
func (m *memStore) WithinTx(ctx context.Context, fn func(tx db.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	rollback := func() {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
	}

	if err := fn(nil); err != nil {
		rollback()
		return err
	}

	m.mu.Lock()
	err := m.commitErr
	m.commitErr = nil
	if err == nil {
		err = m.checkForeignKeys()
	}
	m.mu.Unlock()
	if err != nil {
		rollback()
		return err
	}
	return nil
}

// checkForeignKeys mirrors the deferred constraints. Callers hold mu.
func (m *memStore) checkForeignKeys() error {
	fk := func(name string) error {
		return &db.ConstraintError{Operation: "commit transaction", Constraint: name, Err: db.ErrForeignKeyViolation}
	}
	hasContent := func(id *uuid.UUID) bool {
		if id == nil {
			return true
		}
		_, ok := m.state.items[*id]
		return ok
	}
	hasComment := func(id *uuid.UUID) bool {
		if id == nil {
			return true
		}
		_, ok := m.state.comments[*id]
		return ok
	}

	for _, c := range m.state.comments {
		if !hasContent(c.ContentID) {
			return fk("comments_content_id_fkey")
		}
		if !hasComment(c.ParentID) {
			return fk("comments_parent_id_fkey")
		}
	}
	for _, l := range m.state.likes {
		if !hasContent(l.ContentID) {
			return fk("likes_content_id_fkey")
		}
		if !hasComment(l.CommentID) {
			return fk("likes_comment_id_fkey")
		}
	}
	for _, n := range m.state.notifications {
		if !hasContent(n.ContentID) {
			return fk("notifications_content_id_fkey")
		}
		if !hasComment(n.CommentID) {
			return fk("notifications_comment_id_fkey")
		}
	}
	for _, p := range m.state.playlistItems {
		id := p.ContentID
		if !hasContent(&id) {
			return fk("playlist_items_content_id_fkey")
		}
	}
	return nil
}

// Test helpers.

func (m *memStore) putItem(item *models.ContentItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.items[item.ID] = *item
}

func (m *memStore) item(id uuid.UUID) (models.ContentItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.state.items[id]
	return it, ok
}

func (m *memStore) putComment(c *models.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.comments[c.ID] = *c
}

func (m *memStore) putLike(l models.Like) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.likes[l.ID] = l
}

func (m *memStore) putNotification(n *models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.notifications[n.ID] = *n
}

func (m *memStore) putPlaylistItem(p models.PlaylistItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.playlistItems = append(m.state.playlistItems, p)
}

func (m *memStore) putSubscription(sub *models.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.subscriptions[[2]uuid.UUID{sub.SubscriberID, sub.ChannelID}] = *sub
}

func (m *memStore) counts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"items":          len(m.state.items),
		"comments":       len(m.state.comments),
		"likes":          len(m.state.likes),
		"notifications":  len(m.state.notifications),
		"playlist_items": len(m.state.playlistItems),
		"subscriptions":  len(m.state.subscriptions),
		"orphans":        len(m.state.orphans),
	}
}

func (m *memStore) lockedBlobs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.blobLocks...)
}

func (m *memStore) orphanList() []models.OrphanedBlob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.OrphanedBlob, 0, len(m.state.orphans))
	for _, o := range m.state.orphans {
		out = append(out, o)
	}
	return out
}

func (m *memStore) notificationsFor(recipient uuid.UUID) []models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Notification
	for _, n := range m.state.notifications {
		if n.RecipientID == recipient {
			out = append(out, n)
		}
	}
	return out
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, db.ErrNotFound)
}

type memContent struct{ m *memStore }

func (r *memContent) Create(_ context.Context, _ db.DBTX, item *models.ContentItem) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("content.create"); err != nil {
		return err
	}
	if item.Fingerprint != nil {
		for _, other := range r.m.state.items {
			if other.Fingerprint != nil && *other.Fingerprint == *item.Fingerprint {
				return &db.ConstraintError{Operation: "create content item", Constraint: repository.FingerprintConstraint, Err: db.ErrDuplicateKey}
			}
		}
	}
	r.m.state.items[item.ID] = *item
	return nil
}

func (r *memContent) get(id uuid.UUID, op string) (*models.ContentItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check(op); err != nil {
		return nil, err
	}
	it, ok := r.m.state.items[id]
	if !ok {
		return nil, notFound(op)
	}
	it.AttachedAdIDs = append([]uuid.UUID(nil), it.AttachedAdIDs...)
	return &it, nil
}

func (r *memContent) GetByID(_ context.Context, _ db.DBTX, id uuid.UUID) (*models.ContentItem, error) {
	return r.get(id, "content.get")
}

func (r *memContent) GetByIDForUpdate(_ context.Context, _ db.DBTX, id uuid.UUID) (*models.ContentItem, error) {
	return r.get(id, "content.get_for_update")
}

func (r *memContent) GetByFingerprint(_ context.Context, _ db.DBTX, fingerprint string) (*models.ContentItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("content.get_by_fingerprint"); err != nil {
		return nil, err
	}
	for _, it := range r.m.state.items {
		if it.Fingerprint != nil && *it.Fingerprint == fingerprint {
			return &it, nil
		}
	}
	return nil, notFound("get by fingerprint")
}

func (r *memContent) Delete(_ context.Context, _ db.DBTX, id uuid.UUID) (*models.ContentItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("content.delete"); err != nil {
		return nil, err
	}
	it, ok := r.m.state.items[id]
	if !ok {
		return nil, notFound("delete content item")
	}
	delete(r.m.state.items, id)
	return &it, nil
}

// LockBlobs records the ids; transactions are already serialized.
func (r *memContent) LockBlobs(_ context.Context, _ db.DBTX, externalIDs ...string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("content.lock_blobs"); err != nil {
		return err
	}
	r.m.blobLocks = append(r.m.blobLocks, externalIDs...)
	return nil
}

func (r *memContent) CountBlobReferences(_ context.Context, _ db.DBTX, externalID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("content.count_refs"); err != nil {
		return 0, err
	}
	var n int64
	for _, it := range r.m.state.items {
		if it.PrimaryBlob.ExternalID == externalID || (it.DerivedBlob != nil && it.DerivedBlob.ExternalID == externalID) {
			n++
		}
	}
	return n, nil
}

func (r *memContent) IncrementViews(_ context.Context, _ db.DBTX, id uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	it, ok := r.m.state.items[id]
	if !ok {
		return 0, notFound("increment views")
	}
	it.ViewCount++
	r.m.state.items[id] = it
	return it.ViewCount, nil
}

func (r *memContent) UpdateDetails(_ context.Context, _ db.DBTX, item *models.ContentItem) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("content.update"); err != nil {
		return err
	}
	it, ok := r.m.state.items[item.ID]
	if !ok {
		return notFound("update content item")
	}
	it.Title = item.Title
	it.Description = item.Description
	it.Published = item.Published
	it.DerivedBlob = item.DerivedBlob
	r.m.state.items[item.ID] = it
	return nil
}

func (r *memContent) SetAttachedAds(_ context.Context, _ db.DBTX, id uuid.UUID, adIDs []uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	it, ok := r.m.state.items[id]
	if !ok {
		return notFound("set attached ads")
	}
	it.AttachedAdIDs = append([]uuid.UUID(nil), adIDs...)
	r.m.state.items[id] = it
	return nil
}

type memComments struct{ m *memStore }

func (r *memComments) Create(_ context.Context, _ db.DBTX, c *models.Comment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.state.comments[c.ID] = *c
	return nil
}

func (r *memComments) GetByID(_ context.Context, _ db.DBTX, id uuid.UUID) (*models.Comment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.state.comments[id]
	if !ok {
		return nil, notFound("get comment")
	}
	return &c, nil
}

func (r *memComments) ListIDsByContent(_ context.Context, _ db.DBTX, contentID uuid.UUID) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uuid.UUID
	for id, c := range r.m.state.comments {
		if c.ContentID != nil && *c.ContentID == contentID {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (r *memComments) ListChildIDs(_ context.Context, _ db.DBTX, parentIDs []uuid.UUID) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	parents := idSet(parentIDs)
	var ids []uuid.UUID
	for id, c := range r.m.state.comments {
		if c.ParentID == nil {
			continue
		}
		if _, ok := parents[*c.ParentID]; ok {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}

func (r *memComments) DeleteByIDs(_ context.Context, _ db.DBTX, ids []uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("comments.delete"); err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if _, ok := r.m.state.comments[id]; ok {
			delete(r.m.state.comments, id)
			n++
		}
	}
	return n, nil
}

type memLikes struct{ m *memStore }

func (r *memLikes) Create(_ context.Context, _ db.DBTX, l *models.Like) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.state.likes[l.ID] = *l
	return nil
}

func (r *memLikes) DeleteByContent(_ context.Context, _ db.DBTX, contentID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("likes.delete_by_content"); err != nil {
		return 0, err
	}
	var n int64
	for id, l := range r.m.state.likes {
		if l.ContentID != nil && *l.ContentID == contentID {
			delete(r.m.state.likes, id)
			n++
		}
	}
	return n, nil
}

func (r *memLikes) DeleteByComments(_ context.Context, _ db.DBTX, commentIDs []uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	set := idSet(commentIDs)
	var n int64
	for id, l := range r.m.state.likes {
		if l.CommentID == nil {
			continue
		}
		if _, ok := set[*l.CommentID]; ok {
			delete(r.m.state.likes, id)
			n++
		}
	}
	return n, nil
}

type memNotifications struct{ m *memStore }

func (r *memNotifications) CreateBatch(_ context.Context, _ db.DBTX, batch []*models.Notification) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("notifications.create"); err != nil {
		return 0, err
	}
	for _, n := range batch {
		r.m.state.notifications[n.ID] = *n
	}
	return int64(len(batch)), nil
}

func (r *memNotifications) ListByRecipient(_ context.Context, _ db.DBTX, recipientID uuid.UUID, limit int) ([]*models.Notification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.m.state.notifications {
		if n.RecipientID == recipientID && len(out) < limit {
			out = append(out, &n)
		}
	}
	return out, nil
}

func (r *memNotifications) DeleteByContent(_ context.Context, _ db.DBTX, contentID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, note := range r.m.state.notifications {
		if note.ContentID != nil && *note.ContentID == contentID {
			delete(r.m.state.notifications, id)
			n++
		}
	}
	return n, nil
}

func (r *memNotifications) DeleteByComments(_ context.Context, _ db.DBTX, commentIDs []uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	set := idSet(commentIDs)
	var n int64
	for id, note := range r.m.state.notifications {
		if note.CommentID == nil {
			continue
		}
		if _, ok := set[*note.CommentID]; ok {
			delete(r.m.state.notifications, id)
			n++
		}
	}
	return n, nil
}

type memPlaylists struct{ m *memStore }

func (r *memPlaylists) Create(context.Context, db.DBTX, *models.Playlist) error {
	return nil
}

func (r *memPlaylists) AddItem(_ context.Context, _ db.DBTX, item *models.PlaylistItem) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.state.playlistItems = append(r.m.state.playlistItems, *item)
	return nil
}

func (r *memPlaylists) DeleteItemsByContent(_ context.Context, _ db.DBTX, contentID uuid.UUID) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("playlists.delete_items"); err != nil {
		return 0, err
	}
	kept := r.m.state.playlistItems[:0:0]
	var n int64
	for _, p := range r.m.state.playlistItems {
		if p.ContentID == contentID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.m.state.playlistItems = kept
	return n, nil
}

type memSubscriptions struct{ m *memStore }

func (r *memSubscriptions) Create(_ context.Context, _ db.DBTX, sub *models.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := [2]uuid.UUID{sub.SubscriberID, sub.ChannelID}
	if _, ok := r.m.state.subscriptions[key]; ok {
		return &db.ConstraintError{Operation: "create subscription", Constraint: "subscriptions_subscriber_id_channel_id_key", Err: db.ErrDuplicateKey}
	}
	r.m.state.subscriptions[key] = *sub
	return nil
}

func (r *memSubscriptions) Delete(_ context.Context, _ db.DBTX, subscriberID, channelID uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := [2]uuid.UUID{subscriberID, channelID}
	_, ok := r.m.state.subscriptions[key]
	delete(r.m.state.subscriptions, key)
	return ok, nil
}

func (r *memSubscriptions) ListSubscriberIDs(_ context.Context, _ db.DBTX, channelID uuid.UUID) ([]uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var ids []uuid.UUID
	for key := range r.m.state.subscriptions {
		if key[1] == channelID {
			ids = append(ids, key[0])
		}
	}
	return ids, nil
}

type memOrphans struct{ m *memStore }

func (r *memOrphans) Record(_ context.Context, _ db.DBTX, ref models.BlobRef, reason, lastError string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check("orphans.record"); err != nil {
		return err
	}
	o, ok := r.m.state.orphans[ref.ExternalID]
	if !ok {
		o = models.OrphanedBlob{ID: uuid.New(), Blob: ref}
	}
	o.Reason = reason
	o.LastError = &lastError
	r.m.state.orphans[ref.ExternalID] = o
	return nil
}

func (r *memOrphans) ListPending(_ context.Context, _ db.DBTX, maxAttempts, limit int) ([]*models.OrphanedBlob, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.OrphanedBlob
	for _, o := range r.m.state.orphans {
		if o.Attempts < maxAttempts && len(out) < limit {
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Blob.ExternalID < out[j].Blob.ExternalID })
	return out, nil
}

func (r *memOrphans) MarkAttempt(_ context.Context, _ db.DBTX, id uuid.UUID, lastError string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for key, o := range r.m.state.orphans {
		if o.ID == id {
			o.Attempts++
			o.LastError = &lastError
			r.m.state.orphans[key] = o
			return nil
		}
	}
	return notFound("mark orphaned blob attempt")
}

func (r *memOrphans) Delete(_ context.Context, _ db.DBTX, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for key, o := range r.m.state.orphans {
		if o.ID == id {
			delete(r.m.state.orphans, key)
			return nil
		}
	}
	return notFound("delete orphaned blob")
}

func idSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
