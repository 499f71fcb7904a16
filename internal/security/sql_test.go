package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{"statut", "client_id", "date_fin", "_x1"}
	for _, name := range valid {
		assert.NoError(t, ValidateIdentifier(name), name)
	}

	invalid := []string{"", "Statut", "1col", "statut; drop table users", "a-b", "select", "user"}
	for _, name := range invalid {
		assert.Error(t, ValidateIdentifier(name), name)
	}
}

func TestEscapeLikePattern(t *testing.T) {
	assert.Equal(t, "50!%", EscapeLikePattern("50%"))
	assert.Equal(t, "a!_b", EscapeLikePattern("a_b"))
	assert.Equal(t, "!!x", EscapeLikePattern("!x"))
}

func TestBuildFilterCondition(t *testing.T) {
	expr, err := BuildFilterCondition("statut", "eq", "actif")
	require.NoError(t, err)
	assert.Equal(t, clause.Eq{Column: clause.Column{Name: "statut"}, Value: "actif"}, expr)

	expr, err = BuildFilterCondition("date_fin", "lte", "2026-01-01")
	require.NoError(t, err)
	assert.IsType(t, clause.Lte{}, expr)

	expr, err = BuildFilterCondition("statut", "in", []interface{}{"actif", "en_alerte"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"actif", "en_alerte"}, expr.(clause.IN).Values)

	expr, err = BuildFilterCondition("statut", "in", "actif")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"actif"}, expr.(clause.IN).Values)

	expr, err = BuildFilterCondition("nom", "like", "Ab_C")
	require.NoError(t, err)
	assert.Equal(t, "%ab!_c%", expr.(clause.Expr).Vars[1])

	_, err = BuildFilterCondition("nom; --", "eq", 1)
	assert.Error(t, err)

	_, err = BuildFilterCondition("nom", "regex", ".*")
	assert.Error(t, err)
}
