// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/keyward/keyward/internal/account"
)

// MockStore is a mock implementation of account.Store.
type MockStore struct {
	mock.Mock
}

var _ account.Store = (*MockStore)(nil)

// InTx provides a mock function with given fields: ctx, fn
func (_m *MockStore) InTx(ctx context.Context, fn func(context.Context, account.Tx) error) error {
	ret := _m.Called(ctx, fn)

	if len(ret) == 0 {
		panic("no return value specified for InTx")
	}

	if rf, ok := ret.Get(0).(func(context.Context, func(context.Context, account.Tx) error) error); ok {
		return rf(ctx, fn)
	}
	return ret.Error(0)
}

// ExistsByEmail provides a mock function with given fields: ctx, email
func (_m *MockStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ret := _m.Called(ctx, email)

	if len(ret) == 0 {
		panic("no return value specified for ExistsByEmail")
	}

	if rf, ok := ret.Get(0).(func(context.Context, string) (bool, error)); ok {
		return rf(ctx, email)
	}
	return ret.Bool(0), ret.Error(1)
}

// NewMockStore creates a new instance of MockStore. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
