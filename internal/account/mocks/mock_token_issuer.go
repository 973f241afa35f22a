// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/token"
)

// MockTokenIssuer is a mock implementation of account.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

var _ account.TokenIssuer = (*MockTokenIssuer)(nil)

// Issue provides a mock function with given fields: claims
func (_m *MockTokenIssuer) Issue(claims token.Claims) (string, error) {
	ret := _m.Called(claims)

	if len(ret) == 0 {
		panic("no return value specified for Issue")
	}

	if rf, ok := ret.Get(0).(func(token.Claims) (string, error)); ok {
		return rf(claims)
	}
	return ret.String(0), ret.Error(1)
}

// PublicKey provides a mock function with no fields
func (_m *MockTokenIssuer) PublicKey() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for PublicKey")
	}
	return ret.String(0)
}

// NewMockTokenIssuer creates a new instance of MockTokenIssuer. It also
// registers a testing interface on the mock and a cleanup function to assert
// the mocks expectations.
func NewMockTokenIssuer(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockTokenIssuer {
	m := &MockTokenIssuer{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
