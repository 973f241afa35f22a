// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/keyward/keyward/internal/account"
)

// MockHasher is a mock implementation of account.Hasher.
type MockHasher struct {
	mock.Mock
}

var _ account.Hasher = (*MockHasher)(nil)

// Derive provides a mock function with given fields: password
func (_m *MockHasher) Derive(password string) ([]byte, []byte, error) {
	ret := _m.Called(password)

	if len(ret) == 0 {
		panic("no return value specified for Derive")
	}

	if rf, ok := ret.Get(0).(func(string) ([]byte, []byte, error)); ok {
		return rf(password)
	}

	var r0, r1 []byte
	if v := ret.Get(0); v != nil {
		r0 = v.([]byte)
	}
	if v := ret.Get(1); v != nil {
		r1 = v.([]byte)
	}
	return r0, r1, ret.Error(2)
}

// Verify provides a mock function with given fields: password, salt, hash
func (_m *MockHasher) Verify(password string, salt []byte, hash []byte) bool {
	ret := _m.Called(password, salt, hash)

	if len(ret) == 0 {
		panic("no return value specified for Verify")
	}

	if rf, ok := ret.Get(0).(func(string, []byte, []byte) bool); ok {
		return rf(password, salt, hash)
	}
	return ret.Bool(0)
}

// NewMockHasher creates a new instance of MockHasher. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockHasher {
	m := &MockHasher{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
