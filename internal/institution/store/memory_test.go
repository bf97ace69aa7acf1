package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verichain/internal/institution/models"
	id "verichain/pkg/domain"
	"verichain/pkg/platform/sentinel"
)

func newInstitution(t *testing.T, name string) *models.Institution {
	t.Helper()
	inst, err := models.NewInstitution(id.InstitutionID(uuid.New()), name, time.Now())
	require.NoError(t, err)
	return inst
}

func TestCreate_NameIsCaseInsensitiveUnique(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, newInstitution(t, "Universitas Contoh")))
	err := s.Create(ctx, newInstitution(t, "UNIVERSITAS CONTOH"))
	assert.True(t, errors.Is(err, sentinel.ErrAlreadyUsed))
}

func TestFindByID_ReturnsCopy(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	inst := newInstitution(t, "Polytechnic")
	require.NoError(t, s.Create(ctx, inst))

	found, err := s.FindByID(ctx, inst.ID)
	require.NoError(t, err)
	found.Status = models.StatusInactive

	again, err := s.FindByID(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, again.Status)

	_, err = s.FindByID(ctx, id.InstitutionID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestUpdate_UnknownInstitution(t *testing.T) {
	err := NewInMemory().Update(context.Background(), newInstitution(t, "Ghost"))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestSearchByName(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newInstitution(t, "Universitas Contoh")))
	require.NoError(t, s.Create(ctx, newInstitution(t, "Universitas Lain")))
	require.NoError(t, s.Create(ctx, newInstitution(t, "Institut Teknologi")))

	found, err := s.SearchByName(ctx, "universitas", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Universitas Contoh", found[0].Name)

	found, err = s.SearchByName(ctx, "universitas", 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
