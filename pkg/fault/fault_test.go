package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := fmt.Errorf("status 503")

	assert.Equal(t, KindTransient, KindOf(Transient("fetch", base)))
	assert.Equal(t, KindAuth, KindOf(Auth("fetch", base)))
	assert.Equal(t, KindValidation, KindOf(Validation("parse", base)))
	assert.Equal(t, KindConflict, KindOf(Conflict("publish", base)))
	assert.Equal(t, Kind(0), KindOf(base))
	assert.Equal(t, Kind(0), KindOf(nil))
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("sync readwise: %w", Transient("fetch", fmt.Errorf("status 503")))
	assert.True(t, IsTransient(err))
	assert.False(t, IsAuth(err))
}

func TestUnwrap(t *testing.T) {
	base := fmt.Errorf("status 401")
	err := Auth("fetch", base)
	assert.True(t, errors.Is(err, base))
}

func TestErrorString(t *testing.T) {
	err := Transient("fetch readwise documents", fmt.Errorf("status 503"))
	assert.Equal(t, "fetch readwise documents: transient: status 503", err.Error())
}
