package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduplex/course-api/internal/models"
)

func TestLessonRepositoryCreateAssignsPosition(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery("INSERT INTO lessons").
		WithArgs(sqlmock.AnyArg(), "course-1", "Intro", "", "", 15, false, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"position"}).AddRow(4))

	lesson := &models.Lesson{
		CourseID:    "course-1",
		Title:       "Intro",
		DurationMin: 15,
		Active:      true,
	}
	err := repo.Create(context.Background(), lesson)
	require.NoError(t, err)
	assert.Equal(t, 4, lesson.Position)
	assert.NotEmpty(t, lesson.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
