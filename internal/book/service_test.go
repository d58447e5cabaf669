package book

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestService_Update_ShiftsAvailableCopies(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo)

	current := Book{ID: "b1", Title: "Dune", TotalCopies: 3, AvailableCopies: 1}
	repo.EXPECT().GetByID(gomock.Any(), "b1").Return(current, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any(), 3).DoAndReturn(func(_ context.Context, b *Book, prevTotal int) error {
		assert.Equal(t, 5, b.TotalCopies)
		assert.Equal(t, 3, b.AvailableCopies)
		return nil
	})

	got, err := svc.Update(context.Background(), "b1", UpdateInput{TotalCopies: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableCopies)
	assert.True(t, got.IsAvailable)
}

func TestService_Update_RejectsDroppingBelowCopiesOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo)

	repo.EXPECT().GetByID(gomock.Any(), "b1").Return(Book{ID: "b1", TotalCopies: 3, AvailableCopies: 1}, nil)

	_, err := svc.Update(context.Background(), "b1", UpdateInput{TotalCopies: intPtr(1)})
	assert.ErrorIs(t, err, ErrInvalidCopies)
}

func TestService_Update_PropagatesRepoErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo)

	repo.EXPECT().GetByID(gomock.Any(), "b1").Return(Book{ID: "b1", TotalCopies: 2, AvailableCopies: 2}, nil)
	repo.EXPECT().Update(gomock.Any(), gomock.Any(), 2).Return(ErrConflict)

	_, err := svc.Update(context.Background(), "b1", UpdateInput{TotalCopies: intPtr(1)})
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestNormalizeTags(t *testing.T) {
	assert.Equal(t, []string{"Mongo", "go"}, NormalizeTags([]string{" go", "Mongo", "", "GO", "mongo "}))
	assert.Empty(t, NormalizeTags(nil))
}

func TestBook_Derive(t *testing.T) {
	b := Book{TotalCopies: 1, AvailableCopies: 1}
	b.Derive()
	assert.True(t, b.IsAvailable)
	assert.NotNil(t, b.Tags)

	b.AvailableCopies = 0
	b.Derive()
	assert.False(t, b.IsAvailable)
	assert.Equal(t, 1, b.CopiesOut())
}

func TestCategory_Valid(t *testing.T) {
	assert.True(t, CategorySelfHelp.Valid())
	assert.False(t, Category("Cooking").Valid())
}
