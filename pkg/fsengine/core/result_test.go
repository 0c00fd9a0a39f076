package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeFlags(t *testing.T) {
	t.Run("partial success is still a success", func(t *testing.T) {
		code := Success | InProgress
		assert.True(t, code.Succeeded())
		assert.True(t, code.Has(InProgress))
		assert.True(t, code.Has(Success))
		assert.Equal(t, "success|in-progress", code.String())
	})

	t.Run("failure bit wins over success", func(t *testing.T) {
		code := Success | Unauthorized
		assert.False(t, code.Succeeded())
	})

	t.Run("zero flag is never contained", func(t *testing.T) {
		assert.False(t, Success.Has(0))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, Success},
		{"permission", fs.ErrPermission, Unauthorized},
		{"wrapped not exist", fmt.Errorf("open: %w", fs.ErrNotExist), NotFound},
		{"exist", &fs.PathError{Op: "mkdir", Path: "/x", Err: fs.ErrExist}, AlreadyExists},
		{"canceled", context.Canceled, Cancelled},
		{"deadline", fmt.Errorf("copy: %w", context.DeadlineExceeded), Cancelled},
		{"coded", WithCode(InvalidName, errors.New("bad")), InvalidName},
		{"anything else", errors.New("boom"), Generic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyRealErrors(t *testing.T) {
	_, err := os.Stat(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, NotFound, Classify(err))
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryNone, CategoryOf(Success))
	assert.Equal(t, CategoryNone, CategoryOf(Success|InProgress))
	assert.Equal(t, CategoryAccessDenied, CategoryOf(Unauthorized))
	assert.Equal(t, CategoryNotFound, CategoryOf(NotFound))
	assert.Equal(t, CategoryNameCollision, CategoryOf(AlreadyExists))
	assert.Equal(t, CategoryInUse, CategoryOf(InUse))
	assert.Equal(t, CategoryInvalidName, CategoryOf(InvalidName))
	assert.Equal(t, CategoryCancelled, CategoryOf(Cancelled|NotFound))
	assert.Equal(t, CategoryGeneric, CategoryOf(Generic))
	assert.Equal(t, CategoryGeneric, CategoryOf(0))
}

func TestResult(t *testing.T) {
	t.Run("ok carries value", func(t *testing.T) {
		r := Ok(42)
		require.True(t, r.Succeeded())
		v, ok := r.Value()
		assert.True(t, ok)
		assert.Equal(t, 42, v)
		assert.NoError(t, r.Err())
	})

	t.Run("fail hides value", func(t *testing.T) {
		r := Fail[int](NotFound, fs.ErrNotExist)
		assert.False(t, r.Succeeded())
		_, ok := r.Value()
		assert.False(t, ok)
		assert.ErrorIs(t, r.Err(), fs.ErrNotExist)
	})

	t.Run("fail never reports success", func(t *testing.T) {
		r := Fail[string](Success, nil)
		assert.False(t, r.Succeeded())
		assert.True(t, r.Code().Has(Generic))
		assert.Error(t, r.Err())
	})

	t.Run("partial keeps value and cause", func(t *testing.T) {
		cause := errors.New("origin kept")
		r := Partial("x", cause)
		assert.True(t, r.Succeeded())
		assert.True(t, r.Code().Has(InProgress))
		assert.Equal(t, "x", r.MustValue())
		assert.Equal(t, cause, r.Err())
	})

	t.Run("from error classifies", func(t *testing.T) {
		r := FromError(0, fs.ErrPermission)
		assert.Equal(t, Unauthorized, r.Code())
	})

	t.Run("convert keeps the failure", func(t *testing.T) {
		r := Convert[int, string](Fail[int](InUse, errors.New("locked")))
		assert.Equal(t, InUse, r.Code())
		assert.EqualError(t, r.Err(), "locked")
	})
}

func TestBatchError(t *testing.T) {
	be := &BatchError{
		Failed: []*ItemError{
			{Item: File("/a"), Code: NotFound, Err: fs.ErrNotExist},
			{Item: File("/b"), Code: Unauthorized, Err: fs.ErrPermission},
		},
		Succeeded: 1,
	}
	assert.Equal(t, NotFound|Unauthorized, be.Code())
	assert.ErrorIs(t, be, fs.ErrPermission)
	assert.Contains(t, be.Error(), "2 of 3 items failed")
}

func TestBatchErrorSingleItem(t *testing.T) {
	be := &BatchError{Failed: []*ItemError{{Item: Directory("/music"), Code: AlreadyExists, Err: fs.ErrExist}}}
	assert.Equal(t, "/music: file already exists", be.Error())

	var item *ItemError
	require.ErrorAs(t, be, &item)
	assert.Equal(t, "/music", item.Item.Path)
}
