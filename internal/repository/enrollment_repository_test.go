package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentRepositoryMarkLessonCompleted(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec("INSERT INTO enrollment_lessons").
		WithArgs("enr-1", "les-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.MarkLessonCompleted(context.Background(), "enr-1", "les-1")
	require.NoError(t, err)
	assert.True(t, inserted)

	// Conflict path: the row already exists and the insert is a no-op.
	mock.ExpectExec("INSERT INTO enrollment_lessons").
		WithArgs("enr-1", "les-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err = repo.MarkLessonCompleted(context.Background(), "enr-1", "les-1")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryProgressCounters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs("enr-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed_lessons", "total_lessons"}).AddRow(3, 4))

	progress, err := repo.ProgressCounters(context.Background(), "enr-1", "course-1")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.CompletedLessons)
	assert.Equal(t, 4, progress.TotalLessons)
}
