// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package mocks holds mockery-style testify mocks for the account package.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/keyward/keyward/internal/account"
)

// MockNotifier is a mock implementation of account.Notifier.
type MockNotifier struct {
	mock.Mock
}

var _ account.Notifier = (*MockNotifier)(nil)

// Notify provides a mock function with given fields: ctx, n
func (_m *MockNotifier) Notify(ctx context.Context, n account.Notification) error {
	ret := _m.Called(ctx, n)

	if len(ret) == 0 {
		panic("no return value specified for Notify")
	}

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, account.Notification) error); ok {
		r0 = rf(ctx, n)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

// NewMockNotifier creates a new instance of MockNotifier. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockNotifier(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
