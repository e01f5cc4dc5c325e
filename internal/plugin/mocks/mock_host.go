// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wizard Contributors

// Package mocks holds testify mocks for plugin interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wizardmod/wizard/internal/plugin"
	"github.com/wizardmod/wizard/pkg/wizard"
)

// MockHost is a mock plugin.Host.
type MockHost struct {
	mock.Mock
}

var _ plugin.Host = (*MockHost)(nil)

// NewMockHost creates a MockHost whose expectations are asserted on cleanup.
func NewMockHost(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockHost {
	m := &MockHost{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockHost) Load(ctx context.Context, manifest *plugin.Manifest, dir string) (wizard.Plugin, error) {
	args := m.Called(ctx, manifest, dir)
	var p wizard.Plugin
	if v := args.Get(0); v != nil {
		p = v.(wizard.Plugin)
	}
	return p, args.Error(1)
}

func (m *MockHost) Unload(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockHost) Plugins() []string {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]string)
	}
	return nil
}

func (m *MockHost) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
