package repository

import (
	"context"
	"regexp"
	"testing"

	"artenis/internal/models"
	"artenis/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	comment := &models.Comment{Content: "Clean lines!", PostID: 1, UserID: 1}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "comments_count"=comments_count + 1 WHERE id = $1`)).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Create(ctx, comment)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepository_ListAndDelete(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCommentRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db)
	p := testutil.CreatePost(t, db, u.ID)

	first := &models.Comment{PostID: p.ID, UserID: u.ID, Content: "first"}
	second := &models.Comment{PostID: p.ID, UserID: u.ID, Content: "second"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	comments, total, err := repo.ListByPost(ctx, p.ID, Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, comments, 2)
	require.NotNil(t, comments[0].User)
	assert.Equal(t, u.Username, comments[0].User.Username)

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, got))

	post, err := posts.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), post.CommentsCount)

	_, err = repo.GetByID(ctx, first.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
