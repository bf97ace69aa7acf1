package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
)

func TestNewInstitution(t *testing.T) {
	now := time.Now()

	inst, err := NewInstitution(id.InstitutionID(uuid.New()), "  Universitas Contoh ", now)
	require.NoError(t, err)
	assert.Equal(t, "Universitas Contoh", inst.Name)
	assert.True(t, inst.IsActive())

	_, err = NewInstitution(id.InstitutionID(uuid.New()), "   ", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewInstitution(id.InstitutionID(uuid.New()), strings.Repeat("x", 129), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestInstitutionStatusTransitions(t *testing.T) {
	now := time.Now()
	inst, err := NewInstitution(id.InstitutionID(uuid.New()), "Polytechnic", now)
	require.NoError(t, err)

	later := now.Add(time.Hour)
	require.NoError(t, inst.Deactivate(later))
	assert.False(t, inst.IsActive())
	assert.Equal(t, later, inst.UpdatedAt)
	assert.Error(t, inst.Deactivate(later))

	require.NoError(t, inst.Reactivate(later))
	assert.True(t, inst.IsActive())
	assert.Error(t, inst.Reactivate(later))
}
