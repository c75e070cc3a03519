package snowerrors_test

import (
	"errors"
	"testing"

	"github.com/snowcapio/snowcap/internal/snowerrors"
	"github.com/stretchr/testify/assert"
)

func TestMissingVarError(t *testing.T) {
	err := snowerrors.NewMissingVarError("region")
	assert.Contains(t, err.Error(), "region")

	var target snowerrors.MissingVarError
	assert.True(t, errors.As(error(err), &target))
}

func TestNotADAGErrorNamesCycle(t *testing.T) {
	err := snowerrors.NewNotADAGError([]string{"urn:a", "urn:b", "urn:a"})
	assert.Contains(t, err.Error(), "urn:a -> urn:b -> urn:a")
}

func TestStatementFailureUnwraps(t *testing.T) {
	cause := errors.New("syntax error")
	err := snowerrors.NewStatementFailureError("CREATE DATABASE X", "002003", "SYSADMIN", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "002003")
	assert.Contains(t, err.Error(), "SYSADMIN")
}

func TestMissingPrivilegeError(t *testing.T) {
	err := snowerrors.NewMissingPrivilegeError("urn:x:1234:warehouse/WH", "Create", "CREATE WAREHOUSE")
	assert.Equal(t, "no available role can Create urn:x:1234:warehouse/WH: requires CREATE WAREHOUSE", err.Error())
}
