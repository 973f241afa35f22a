// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package errutil_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/keyward/keyward/pkg/errutil"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errutil.Kind
	}{
		{"nil", nil, errutil.KindNone},
		{"invalid request", oops.Code("ACCOUNT_EXISTS").Wrap(errutil.ErrInvalidRequest), errutil.KindInvalidRequest},
		{"not found", oops.Code("ACCOUNT_NOT_FOUND").Wrap(errutil.ErrNotFound), errutil.KindNotFound},
		{"unauthenticated", oops.Code("TOKEN_INVALID").Wrap(errutil.ErrUnauthenticated), errutil.KindUnauthenticated},
		{"wrapped twice", fmt.Errorf("outer: %w", oops.Wrap(errutil.ErrNotFound)), errutil.KindNotFound},
		{"plain", errors.New("db down"), errutil.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errutil.KindOf(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "X", errutil.Code(oops.Code("X").Errorf("x")))
	assert.Empty(t, errutil.Code(errors.New("plain")))
	assert.Empty(t, errutil.Code(oops.With("k", "v").Errorf("no code")))
	assert.Equal(t, "INNER", errutil.Code(oops.Code("OUTER").Wrap(oops.Code("INNER").Errorf("x"))))
}
