package upload

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nullstream-oss/apkvault/internal/domain"
)

func TestShouldCompensateApkSkipsVersionExists(t *testing.T) {
	err := domain.NewAppError(domain.CodeVersionExists, "version already exists for com.example.app")
	assert.False(t, shouldCompensateApk(err))
}

func TestShouldCompensateApkFiresForOtherFailures(t *testing.T) {
	cases := []error{
		domain.WrapError(domain.CodeDatabase, "failed to insert version", errors.New("disk full")),
		domain.NewAppError(domain.CodeInternal, "boom"),
		errors.New("unclassified failure"),
	}
	for _, err := range cases {
		assert.True(t, shouldCompensateApk(err))
	}
}
