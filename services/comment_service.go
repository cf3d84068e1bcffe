package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/commentboard/metrics"
	"github.com/cppla/commentboard/models"
)

var (
	// ErrCommentNotFound is returned when no comment matches the requested id.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrInvalidVote is returned for vote deltas other than +1 and -1.
	ErrInvalidVote = errors.New("vote delta must be +1 or -1")
)

// NameGenerator produces the author name of a new comment.
type NameGenerator func() string

// IDGenerator produces the id of a new comment.
type IDGenerator func() string

// ChangeHook runs after a comment was created or its votes changed.
type ChangeHook func(ctx context.Context)

// Option customizes a CommentService.
type Option func(*CommentService)

// WithNameGenerator replaces the random author name generator.
func WithNameGenerator(fn NameGenerator) Option {
	return func(s *CommentService) {
		if fn != nil {
			s.authorName = fn
		}
	}
}

// WithIDGenerator replaces the UUID id generator.
func WithIDGenerator(fn IDGenerator) Option {
	return func(s *CommentService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithChangeHook registers fn to run after every successful write.
func WithChangeHook(fn ChangeHook) Option {
	return func(s *CommentService) {
		if fn != nil {
			s.onChange = append(s.onChange, fn)
		}
	}
}

// RandomAuthorName returns a fake person name. Safe for concurrent use.
func RandomAuthorName() string {
	return gofakeit.Name()
}

// CommentService implements the comment operations directly on the store.
// It keeps no copies of comments; every call reads or writes through gorm.
type CommentService struct {
	db         *gorm.DB
	newID      IDGenerator
	authorName NameGenerator
	onChange   []ChangeHook
}

// NewCommentService creates a CommentService backed by db.
func NewCommentService(db *gorm.DB, opts ...Option) *CommentService {
	s := &CommentService{
		db:         db,
		newID:      uuid.NewString,
		authorName: RandomAuthorName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new comment with a server-assigned id and author.
func (s *CommentService) Create(ctx context.Context, content string) (comment *models.Comment, err error) {
	defer func() { metrics.ObserveOperation("create", err, ErrCommentNotFound) }()

	comment = &models.Comment{
		ID:         s.newID(),
		AuthorName: s.authorName(),
		Content:    content,
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	s.changed(ctx)
	return comment, nil
}

// GetByID loads a single comment.
func (s *CommentService) GetByID(ctx context.Context, id string) (comment *models.Comment, err error) {
	defer func() { metrics.ObserveOperation("get", err, ErrCommentNotFound) }()

	var c models.Comment
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("load comment %s: %w", id, err)
	}
	return &c, nil
}

// List returns every comment, oldest first.
func (s *CommentService) List(ctx context.Context) (comments []*models.Comment, err error) {
	defer func() { metrics.ObserveOperation("list", err, ErrCommentNotFound) }()

	comments = make([]*models.Comment, 0)
	if err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// AdjustVote adds delta to the upvote counter of a comment and returns the updated row.
// The increment happens in SQL, so concurrent votes on one comment never overwrite each other.
func (s *CommentService) AdjustVote(ctx context.Context, id string, delta int) (comment *models.Comment, err error) {
	defer func() { metrics.ObserveOperation("vote", err, ErrCommentNotFound) }()

	if delta != 1 && delta != -1 {
		return nil, ErrInvalidVote
	}

	var c models.Comment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Comment{}).
			Where("id = ?", id).
			UpdateColumns(map[string]interface{}{
				"upvotes":    gorm.Expr("upvotes + ?", delta),
				"updated_at": tx.NowFunc(),
			})
		if res.Error != nil {
			return fmt.Errorf("update votes of %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCommentNotFound
		}
		// the update still holds the row lock here
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return fmt.Errorf("reload comment %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx)
	return &c, nil
}

func (s *CommentService) changed(ctx context.Context) {
	for _, fn := range s.onChange {
		fn(ctx)
	}
}

// Upvote increments the counter by one.
func (s *CommentService) Upvote(ctx context.Context, id string) (*models.Comment, error) {
	return s.AdjustVote(ctx, id, 1)
}

// Downvote decrements the counter by one. The counter may go below zero.
func (s *CommentService) Downvote(ctx context.Context, id string) (*models.Comment, error) {
	return s.AdjustVote(ctx, id, -1)
}
