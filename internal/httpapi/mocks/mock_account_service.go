// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package mocks holds testify mocks for the httpapi interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/keyward/keyward/internal/account"
)

// MockAccountService is a mock implementation of httpapi.AccountService.
type MockAccountService struct {
	mock.Mock
}

// SignUp provides a mock function with given fields: ctx, req
func (_m *MockAccountService) SignUp(ctx context.Context, req account.SignUpRequest) error {
	ret := _m.Called(ctx, req)
	if len(ret) == 0 {
		panic("no return value specified for SignUp")
	}
	return ret.Error(0)
}

// ConfirmEmail provides a mock function with given fields: ctx, email, code
func (_m *MockAccountService) ConfirmEmail(ctx context.Context, email, code string) error {
	ret := _m.Called(ctx, email, code)
	if len(ret) == 0 {
		panic("no return value specified for ConfirmEmail")
	}
	return ret.Error(0)
}

// Login provides a mock function with given fields: ctx, req
func (_m *MockAccountService) Login(ctx context.Context, req account.LoginRequest) (*account.Access, error) {
	ret := _m.Called(ctx, req)
	if len(ret) == 0 {
		panic("no return value specified for Login")
	}
	var r0 *account.Access
	if v := ret.Get(0); v != nil {
		r0 = v.(*account.Access)
	}
	return r0, ret.Error(1)
}

// CheckEmailExists provides a mock function with given fields: ctx, email
func (_m *MockAccountService) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	ret := _m.Called(ctx, email)
	if len(ret) == 0 {
		panic("no return value specified for CheckEmailExists")
	}
	return ret.Bool(0), ret.Error(1)
}

// ChangePassword provides a mock function with given fields: ctx, req
func (_m *MockAccountService) ChangePassword(ctx context.Context, req account.ChangePasswordRequest) error {
	ret := _m.Called(ctx, req)
	if len(ret) == 0 {
		panic("no return value specified for ChangePassword")
	}
	return ret.Error(0)
}

// SendHint provides a mock function with given fields: ctx, email
func (_m *MockAccountService) SendHint(ctx context.Context, email string) error {
	ret := _m.Called(ctx, email)
	if len(ret) == 0 {
		panic("no return value specified for SendHint")
	}
	return ret.Error(0)
}

// DeleteAccount provides a mock function with given fields: ctx, email, password
func (_m *MockAccountService) DeleteAccount(ctx context.Context, email, password string) error {
	ret := _m.Called(ctx, email, password)
	if len(ret) == 0 {
		panic("no return value specified for DeleteAccount")
	}
	return ret.Error(0)
}

// ChangeEmail provides a mock function with given fields: ctx, oldEmail, newEmail, password
func (_m *MockAccountService) ChangeEmail(ctx context.Context, oldEmail, newEmail, password string) error {
	ret := _m.Called(ctx, oldEmail, newEmail, password)
	if len(ret) == 0 {
		panic("no return value specified for ChangeEmail")
	}
	return ret.Error(0)
}

// ConfirmChangeEmail provides a mock function with given fields: ctx, req
func (_m *MockAccountService) ConfirmChangeEmail(ctx context.Context, req account.ConfirmChangeEmailRequest) error {
	ret := _m.Called(ctx, req)
	if len(ret) == 0 {
		panic("no return value specified for ConfirmChangeEmail")
	}
	return ret.Error(0)
}

// ChangeInformation provides a mock function with given fields: ctx, req
func (_m *MockAccountService) ChangeInformation(ctx context.Context, req account.ChangeInformationRequest) error {
	ret := _m.Called(ctx, req)
	if len(ret) == 0 {
		panic("no return value specified for ChangeInformation")
	}
	return ret.Error(0)
}

// PublicKey provides a mock function with no fields
func (_m *MockAccountService) PublicKey() string {
	ret := _m.Called()
	if len(ret) == 0 {
		panic("no return value specified for PublicKey")
	}
	return ret.String(0)
}

// NewMockAccountService creates a new instance of MockAccountService. It also
// registers a testing interface on the mock and a cleanup function to assert
// the mocks expectations.
func NewMockAccountService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAccountService {
	m := &MockAccountService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
