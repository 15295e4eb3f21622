package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"artenis/internal/models"
	"artenis/internal/notifications"
	"artenis/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn        func(context.Context, uint) (*models.User, error)
	getByEmailFn     func(context.Context, string) (*models.User, error)
	getByUsernameFn  func(context.Context, string) (*models.User, error)
	createFn         func(context.Context, *models.User) error
	updateFn         func(context.Context, *models.User) error
	updateRoleFn     func(context.Context, uint, models.UserRole) error
	updateStatusFn   func(context.Context, uint, models.UserStatus) error
	touchLastLoginFn func(context.Context, uint, time.Time) error
	searchFn         func(context.Context, string, repository.Page) ([]models.User, int64, error)
	activityFn       func(context.Context, uint) (*repository.UserActivity, error)
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) UpdateRole(ctx context.Context, id uint, role models.UserRole) error {
	return s.updateRoleFn(ctx, id, role)
}
func (s *userRepoStub) UpdateStatus(ctx context.Context, id uint, status models.UserStatus) error {
	return s.updateStatusFn(ctx, id, status)
}
func (s *userRepoStub) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return s.touchLastLoginFn(ctx, id, at)
}
func (s *userRepoStub) Search(ctx context.Context, q string, page repository.Page) ([]models.User, int64, error) {
	return s.searchFn(ctx, q, page)
}
func (s *userRepoStub) Activity(ctx context.Context, id uint) (*repository.UserActivity, error) {
	return s.activityFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Role: models.RoleUser, Status: models.UserStatusActive}, nil
		},
		getByEmailFn:     func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByUsernameFn:  func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		createFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateFn:         func(_ context.Context, _ *models.User) error { return nil },
		updateRoleFn:     func(_ context.Context, _ uint, _ models.UserRole) error { return nil },
		updateStatusFn:   func(_ context.Context, _ uint, _ models.UserStatus) error { return nil },
		touchLastLoginFn: func(_ context.Context, _ uint, _ time.Time) error { return nil },
		searchFn: func(_ context.Context, _ string, _ repository.Page) ([]models.User, int64, error) {
			return nil, 0, nil
		},
		activityFn: func(_ context.Context, _ uint) (*repository.UserActivity, error) {
			return &repository.UserActivity{}, nil
		},
	}
}

// usersByID serves GetByID from a fixed set of users.
func usersByID(users ...*models.User) func(context.Context, uint) (*models.User, error) {
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return func(_ context.Context, id uint) (*models.User, error) {
		u, ok := byID[id]
		if !ok {
			return nil, models.NewNotFoundError("User", id)
		}
		cp := *u
		return &cp, nil
	}
}

// followRepoStub is a stub for repository.FollowRepository.
type followRepoStub struct {
	createFn         func(context.Context, uint, uint) error
	deleteFn         func(context.Context, uint, uint) (bool, error)
	existsFn         func(context.Context, uint, uint) (bool, error)
	countFollowersFn func(context.Context, uint) (int64, error)
	countFollowingFn func(context.Context, uint) (int64, error)
	listFollowersFn  func(context.Context, uint, repository.Page) ([]models.User, int64, error)
	listFollowingFn  func(context.Context, uint, repository.Page) ([]models.User, int64, error)
}

func (s *followRepoStub) Create(ctx context.Context, followerID, followingID uint) error {
	return s.createFn(ctx, followerID, followingID)
}
func (s *followRepoStub) Delete(ctx context.Context, followerID, followingID uint) (bool, error) {
	return s.deleteFn(ctx, followerID, followingID)
}
func (s *followRepoStub) Exists(ctx context.Context, followerID, followingID uint) (bool, error) {
	return s.existsFn(ctx, followerID, followingID)
}
func (s *followRepoStub) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	return s.countFollowersFn(ctx, userID)
}
func (s *followRepoStub) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	return s.countFollowingFn(ctx, userID)
}
func (s *followRepoStub) ListFollowers(ctx context.Context, userID uint, page repository.Page) ([]models.User, int64, error) {
	return s.listFollowersFn(ctx, userID, page)
}
func (s *followRepoStub) ListFollowing(ctx context.Context, userID uint, page repository.Page) ([]models.User, int64, error) {
	return s.listFollowingFn(ctx, userID, page)
}

func noopFollowRepo() *followRepoStub {
	return &followRepoStub{
		createFn:         func(_ context.Context, _, _ uint) error { return nil },
		deleteFn:         func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		existsFn:         func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		countFollowersFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		countFollowingFn: func(_ context.Context, _ uint) (int64, error) { return 0, nil },
		listFollowersFn: func(_ context.Context, _ uint, _ repository.Page) ([]models.User, int64, error) {
			return nil, 0, nil
		},
		listFollowingFn: func(_ context.Context, _ uint, _ repository.Page) ([]models.User, int64, error) {
			return nil, 0, nil
		},
	}
}

// artistRepoStub is a stub for repository.ArtistRepository.
type artistRepoStub struct {
	findByUserIDFn   func(context.Context, uint) (*models.ArtistProfile, error)
	createDefaultFn  func(context.Context, uint) (*models.ArtistProfile, error)
	deleteByUserIDFn func(context.Context, uint) error
	updateFn         func(context.Context, *models.ArtistProfile) error
}

func (s *artistRepoStub) FindByUserID(ctx context.Context, userID uint) (*models.ArtistProfile, error) {
	return s.findByUserIDFn(ctx, userID)
}
func (s *artistRepoStub) CreateDefault(ctx context.Context, userID uint) (*models.ArtistProfile, error) {
	return s.createDefaultFn(ctx, userID)
}
func (s *artistRepoStub) DeleteByUserID(ctx context.Context, userID uint) error {
	return s.deleteByUserIDFn(ctx, userID)
}
func (s *artistRepoStub) Update(ctx context.Context, profile *models.ArtistProfile) error {
	return s.updateFn(ctx, profile)
}

func noopArtistRepo() *artistRepoStub {
	return &artistRepoStub{
		findByUserIDFn: func(_ context.Context, userID uint) (*models.ArtistProfile, error) {
			return &models.ArtistProfile{UserID: userID, BookingEnabled: true, Styles: []string{}}, nil
		},
		createDefaultFn: func(_ context.Context, userID uint) (*models.ArtistProfile, error) {
			return &models.ArtistProfile{UserID: userID, BookingEnabled: true}, nil
		},
		deleteByUserIDFn: func(_ context.Context, _ uint) error { return nil },
		updateFn:         func(_ context.Context, _ *models.ArtistProfile) error { return nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn            func(context.Context, *models.Post) error
	getByIDFn           func(context.Context, uint) (*models.Post, error)
	updateFn            func(context.Context, *models.Post) error
	updateStatusFn      func(context.Context, uint, models.PostStatus) error
	setPromotionFn      func(context.Context, uint, bool, *time.Time) error
	feedCandidatesFn    func(context.Context, repository.FeedFilter) ([]*models.Post, error)
	listByUserFn        func(context.Context, uint, []models.PostStatus, repository.Page) ([]*models.Post, int64, error)
	listForModerationFn func(context.Context, repository.Page) ([]*models.Post, int64, error)
	listSavedFn         func(context.Context, uint, repository.Page) ([]*models.Post, int64, error)
	likeFn              func(context.Context, uint, uint) (bool, error)
	unlikeFn            func(context.Context, uint, uint) (bool, error)
	saveFn              func(context.Context, uint, uint) (bool, error)
	unsaveFn            func(context.Context, uint, uint) (bool, error)
	incrementSharesFn   func(context.Context, uint) error
	incrementViewsFn    func(context.Context, uint) error
	markInteractionsFn  func(context.Context, uint, []*models.Post) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) UpdateStatus(ctx context.Context, id uint, status models.PostStatus) error {
	return s.updateStatusFn(ctx, id, status)
}
func (s *postRepoStub) SetPromotion(ctx context.Context, id uint, promoted bool, until *time.Time) error {
	return s.setPromotionFn(ctx, id, promoted, until)
}
func (s *postRepoStub) FeedCandidates(ctx context.Context, f repository.FeedFilter) ([]*models.Post, error) {
	return s.feedCandidatesFn(ctx, f)
}
func (s *postRepoStub) ListByUser(ctx context.Context, userID uint, statuses []models.PostStatus, page repository.Page) ([]*models.Post, int64, error) {
	return s.listByUserFn(ctx, userID, statuses, page)
}
func (s *postRepoStub) ListForModeration(ctx context.Context, page repository.Page) ([]*models.Post, int64, error) {
	return s.listForModerationFn(ctx, page)
}
func (s *postRepoStub) ListSaved(ctx context.Context, userID uint, page repository.Page) ([]*models.Post, int64, error) {
	return s.listSavedFn(ctx, userID, page)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) (bool, error) {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	return s.unlikeFn(ctx, userID, postID)
}
func (s *postRepoStub) Save(ctx context.Context, userID, postID uint) (bool, error) {
	return s.saveFn(ctx, userID, postID)
}
func (s *postRepoStub) Unsave(ctx context.Context, userID, postID uint) (bool, error) {
	return s.unsaveFn(ctx, userID, postID)
}
func (s *postRepoStub) IncrementShares(ctx context.Context, postID uint) error {
	return s.incrementSharesFn(ctx, postID)
}
func (s *postRepoStub) IncrementViews(ctx context.Context, postID uint) error {
	return s.incrementViewsFn(ctx, postID)
}
func (s *postRepoStub) MarkInteractions(ctx context.Context, userID uint, posts []*models.Post) error {
	return s.markInteractionsFn(ctx, userID, posts)
}

func noopPostRepo() *postRepoStub {
	emptyList := func(_ context.Context, _ repository.Page) ([]*models.Post, int64, error) { return nil, 0, nil }
	return &postRepoStub{
		createFn: func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1, Status: models.PostStatusPublished, AllowComments: true, AllowSharing: true}, nil
		},
		updateFn:       func(_ context.Context, _ *models.Post) error { return nil },
		updateStatusFn: func(_ context.Context, _ uint, _ models.PostStatus) error { return nil },
		setPromotionFn: func(_ context.Context, _ uint, _ bool, _ *time.Time) error { return nil },
		feedCandidatesFn: func(_ context.Context, _ repository.FeedFilter) ([]*models.Post, error) {
			return nil, nil
		},
		listByUserFn: func(_ context.Context, _ uint, _ []models.PostStatus, _ repository.Page) ([]*models.Post, int64, error) {
			return nil, 0, nil
		},
		listForModerationFn: emptyList,
		listSavedFn: func(_ context.Context, _ uint, _ repository.Page) ([]*models.Post, int64, error) {
			return nil, 0, nil
		},
		likeFn:             func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		unlikeFn:           func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		saveFn:             func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		unsaveFn:           func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		incrementSharesFn:  func(_ context.Context, _ uint) error { return nil },
		incrementViewsFn:   func(_ context.Context, _ uint) error { return nil },
		markInteractionsFn: func(_ context.Context, _ uint, _ []*models.Post) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn     func(context.Context, *models.Comment) error
	getByIDFn    func(context.Context, uint) (*models.Comment, error)
	listByPostFn func(context.Context, uint, repository.Page) ([]*models.Comment, int64, error)
	deleteFn     func(context.Context, *models.Comment) error
}

func (s *commentRepoStub) Create(ctx context.Context, c *models.Comment) error {
	return s.createFn(ctx, c)
}
func (s *commentRepoStub) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}
func (s *commentRepoStub) ListByPost(ctx context.Context, postID uint, page repository.Page) ([]*models.Comment, int64, error) {
	return s.listByPostFn(ctx, postID, page)
}
func (s *commentRepoStub) Delete(ctx context.Context, c *models.Comment) error {
	return s.deleteFn(ctx, c)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error {
			c.ID = 100
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			return &models.Comment{ID: id, PostID: 1, UserID: 1}, nil
		},
		listByPostFn: func(_ context.Context, _ uint, _ repository.Page) ([]*models.Comment, int64, error) {
			return nil, 0, nil
		},
		deleteFn: func(_ context.Context, _ *models.Comment) error { return nil },
	}
}

// bookingRepoStub is a stub for repository.BookingRepository.
type bookingRepoStub struct {
	createAppointmentFn     func(context.Context, *models.Appointment) error
	getAppointmentFn        func(context.Context, uint) (*models.Appointment, error)
	transitionAppointmentFn func(context.Context, uint, []models.AppointmentStatus, models.AppointmentStatus) error
	listAppointmentsFn      func(context.Context, repository.AppointmentFilter, repository.Page) ([]models.Appointment, int64, error)
	createQuoteFn           func(context.Context, *models.Quote) error
	getQuoteFn              func(context.Context, uint) (*models.Quote, error)
	updateQuoteFn           func(context.Context, *models.Quote) error
	listQuotesFn            func(context.Context, uint, bool, repository.Page) ([]models.Quote, int64, error)
}

func (s *bookingRepoStub) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	return s.createAppointmentFn(ctx, a)
}
func (s *bookingRepoStub) GetAppointment(ctx context.Context, id uint) (*models.Appointment, error) {
	return s.getAppointmentFn(ctx, id)
}
func (s *bookingRepoStub) TransitionAppointment(ctx context.Context, id uint, from []models.AppointmentStatus, to models.AppointmentStatus) error {
	return s.transitionAppointmentFn(ctx, id, from, to)
}
func (s *bookingRepoStub) ListAppointments(ctx context.Context, f repository.AppointmentFilter, page repository.Page) ([]models.Appointment, int64, error) {
	return s.listAppointmentsFn(ctx, f, page)
}
func (s *bookingRepoStub) CreateQuote(ctx context.Context, q *models.Quote) error {
	return s.createQuoteFn(ctx, q)
}
func (s *bookingRepoStub) GetQuote(ctx context.Context, id uint) (*models.Quote, error) {
	return s.getQuoteFn(ctx, id)
}
func (s *bookingRepoStub) UpdateQuote(ctx context.Context, q *models.Quote) error {
	return s.updateQuoteFn(ctx, q)
}
func (s *bookingRepoStub) ListQuotes(ctx context.Context, userID uint, asArtist bool, page repository.Page) ([]models.Quote, int64, error) {
	return s.listQuotesFn(ctx, userID, asArtist, page)
}

func noopBookingRepo() *bookingRepoStub {
	return &bookingRepoStub{
		createAppointmentFn: func(_ context.Context, a *models.Appointment) error {
			a.ID = 1
			return nil
		},
		getAppointmentFn: func(_ context.Context, id uint) (*models.Appointment, error) {
			return nil, models.NewNotFoundError("Appointment", id)
		},
		transitionAppointmentFn: func(_ context.Context, _ uint, _ []models.AppointmentStatus, _ models.AppointmentStatus) error {
			return nil
		},
		listAppointmentsFn: func(_ context.Context, _ repository.AppointmentFilter, _ repository.Page) ([]models.Appointment, int64, error) {
			return nil, 0, nil
		},
		createQuoteFn: func(_ context.Context, q *models.Quote) error {
			q.ID = 1
			return nil
		},
		getQuoteFn: func(_ context.Context, id uint) (*models.Quote, error) {
			return nil, models.NewNotFoundError("Quote", id)
		},
		updateQuoteFn: func(_ context.Context, _ *models.Quote) error { return nil },
		listQuotesFn: func(_ context.Context, _ uint, _ bool, _ repository.Page) ([]models.Quote, int64, error) {
			return nil, 0, nil
		},
	}
}

type sentEvent struct {
	UserID uint
	Event  notifications.Event
}

// notifierStub records events instead of publishing them.
type notifierStub struct {
	mu   sync.Mutex
	sent []sentEvent
	err  error
}

func (n *notifierStub) NotifyUser(_ context.Context, userID uint, ev notifications.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentEvent{UserID: userID, Event: ev})
	return n.err
}

func (n *notifierStub) events() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.sent...)
}

type flagsStub map[string]bool

func (f flagsStub) Enabled(name string, _ uint) bool { return f[name] }

type mediaRemoverStub struct {
	deleted []string
}

func (m *mediaRemoverStub) DeleteURLs(_ context.Context, urls []string) {
	m.deleted = append(m.deleted, urls...)
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeNotFound)
}

func assertConflictError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeConflict)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}
