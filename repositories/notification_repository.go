package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

type NotificationRepo struct {
	session *gocql.Session
}

// NewNotificationRepo connects to Cassandra, creating the keyspace on first
// use.
func NewNotificationRepo(hosts []string, keyspace string) (*NotificationRepo, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = "system"
	cluster.Timeout = 10 * time.Second
	session, err := cluster.CreateSession()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASSANDRA_CONNECT_FAILED, Description: %v", err)
		return nil, err
	}

	err = session.Query(fmt.Sprintf(
		`CREATE KEYSPACE IF NOT EXISTS %s
         WITH replication = {
             'class': 'SimpleStrategy',
             'replication_factor': 1
         }`, keyspace)).Exec()
	session.Close()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASSANDRA_KEYSPACE_FAILED, Description: Failed to create keyspace %s: %v", keyspace, err)
		return nil, err
	}

	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.One
	session, err = cluster.CreateSession()
	if err != nil {
		logging.Logger.Errorf("Event ID: CASSANDRA_CONNECT_FAILED, Description: Failed to connect to keyspace %s: %v", keyspace, err)
		return nil, err
	}

	logging.Logger.Infof("Event ID: CASSANDRA_CONNECTED, Description: Connected to Cassandra keyspace %s", keyspace)
	return &NotificationRepo{session: session}, nil
}

func (r *NotificationRepo) CloseSession() {
	r.session.Close()
	logging.Logger.Infof("Event ID: CASSANDRA_CLOSED, Description: Cassandra session closed")
}

// CreateTable clusters by the timeuuid id so a partition reads newest first.
func (r *NotificationRepo) CreateTable() error {
	err := r.session.Query(
		`CREATE TABLE IF NOT EXISTS notifications_by_recipient (
			recipient_id TEXT,
			id TIMEUUID,
			type TEXT,
			title TEXT,
			message TEXT,
			is_read BOOLEAN,
			priority TEXT,
			action_url TEXT,
			created_at TIMESTAMP,
			PRIMARY KEY ((recipient_id), id)
		) WITH CLUSTERING ORDER BY (id DESC)`).Exec()
	if err != nil {
		return fmt.Errorf("failed to create notifications table: %w", err)
	}
	return nil
}

func (r *NotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	id := gocql.UUIDFromTime(n.CreatedAt)
	if n.ID != "" {
		parsed, err := gocql.ParseUUID(n.ID)
		if err != nil {
			return fmt.Errorf("%w: invalid notification id", services.ErrValidation)
		}
		id = parsed
	}
	n.ID = id.String()

	return r.session.Query(
		`INSERT INTO notifications_by_recipient
			(recipient_id, id, type, title, message, is_read, priority, action_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.RecipientID, id, string(n.Type), n.Title, n.Message, n.Read, string(n.Priority), n.ActionURL, n.CreatedAt,
	).WithContext(ctx).Exec()
}

const notificationColumns = `id, recipient_id, type, title, message, is_read, priority, action_url, created_at`

func scanNotification(scan func(dest ...any) bool) (models.Notification, bool) {
	var (
		n              models.Notification
		id             gocql.UUID
		kind, priority string
	)
	ok := scan(&id, &n.RecipientID, &kind, &n.Title, &n.Message, &n.Read, &priority, &n.ActionURL, &n.CreatedAt)
	n.ID = id.String()
	n.Type = models.NotificationType(kind)
	n.Priority = models.NotificationPriority(priority)
	return n, ok
}

func (r *NotificationRepo) FindByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	iter := r.session.Query(
		`SELECT `+notificationColumns+` FROM notifications_by_recipient WHERE recipient_id = ? LIMIT ?`,
		recipientID, limit,
	).WithContext(ctx).Iter()

	notifications := []models.Notification{}
	for {
		n, ok := scanNotification(iter.Scan)
		if !ok {
			break
		}
		notifications = append(notifications, n)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	return notifications, nil
}

// notificationPageSize bounds each round trip while a partition is walked.
const notificationPageSize = 100

// FindUnreadByRecipient pages through the recipient's partition. is_read is a
// regular column, so it is filtered here rather than in CQL.
func (r *NotificationRepo) FindUnreadByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error) {
	iter := r.session.Query(
		`SELECT `+notificationColumns+` FROM notifications_by_recipient WHERE recipient_id = ?`,
		recipientID,
	).WithContext(ctx).PageSize(notificationPageSize).Iter()

	unread := []models.Notification{}
	for limit <= 0 || len(unread) < limit {
		n, ok := scanNotification(iter.Scan)
		if !ok {
			break
		}
		if !n.Read {
			unread = append(unread, n)
		}
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read unread notifications: %w", err)
	}
	return unread, nil
}

func parseNotificationID(id string) (gocql.UUID, error) {
	uuid, err := gocql.ParseUUID(id)
	if err != nil {
		// Malformed ids cannot exist in the table.
		return gocql.UUID{}, services.ErrNotFound
	}
	return uuid, nil
}

func (r *NotificationRepo) FindByID(ctx context.Context, recipientID, id string) (*models.Notification, error) {
	uuid, err := parseNotificationID(id)
	if err != nil {
		return nil, err
	}
	q := r.session.Query(
		`SELECT `+notificationColumns+` FROM notifications_by_recipient WHERE recipient_id = ? AND id = ?`,
		recipientID, uuid,
	).WithContext(ctx)

	n, _ := scanNotification(func(dest ...any) bool {
		err = q.Scan(dest...)
		return err == nil
	})
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	uuid, err := parseNotificationID(id)
	if err != nil {
		return err
	}
	return r.session.Query(
		`UPDATE notifications_by_recipient SET is_read = true WHERE recipient_id = ? AND id = ?`,
		recipientID, uuid,
	).WithContext(ctx).Exec()
}

func (r *NotificationRepo) Delete(ctx context.Context, recipientID, id string) error {
	uuid, err := parseNotificationID(id)
	if err != nil {
		return err
	}
	return r.session.Query(
		`DELETE FROM notifications_by_recipient WHERE recipient_id = ? AND id = ?`,
		recipientID, uuid,
	).WithContext(ctx).Exec()
}
