package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	errMissing := New(KindNotFound, "missing manifest")

	testData := map[string]struct {
		err    error
		kind   Kind
		status int
	}{
		"unclassified": {
			err:    errors.New("boom"),
			kind:   KindInternal,
			status: http.StatusInternalServerError,
		},
		"sentinel": {
			err:    errMissing,
			kind:   KindNotFound,
			status: http.StatusNotFound,
		},
		"wrapped sentinel": {
			err:    fmt.Errorf("unable to load service, %w", errMissing),
			kind:   KindNotFound,
			status: http.StatusNotFound,
		},
		"validation": {
			err:    Wrap(KindValidation, "bad date", errors.New("parse")),
			kind:   KindValidation,
			status: http.StatusBadRequest,
		},
		"data insufficiency": {
			err:    New(KindDataInsufficiency, "no rows"),
			kind:   KindDataInsufficiency,
			status: http.StatusUnprocessableEntity,
		},
		"schema": {
			err:    New(KindSchema, "missing columns"),
			kind:   KindSchema,
			status: http.StatusInternalServerError,
		},
		"configuration": {
			err:    New(KindConfiguration, "no salinity source"),
			kind:   KindConfiguration,
			status: http.StatusInternalServerError,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			kind := KindOf(td.err)
			assert.Equal(t, td.kind, kind)
			assert.Equal(t, td.status, kind.HTTPStatus())
		})
	}
}

func TestIsNested(t *testing.T) {
	inner := New(KindSchema, "missing rain column")
	outer := Wrap(KindInternal, "unable to rebuild", fmt.Errorf("weather, %w", inner))

	assert.True(t, Is(outer, KindInternal))
	assert.True(t, Is(outer, KindSchema))
	assert.False(t, Is(outer, KindNotFound))
	assert.ErrorIs(t, outer, inner)
	assert.Equal(t, "unable to rebuild, weather, missing rain column", outer.Error())
}
