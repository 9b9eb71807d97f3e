// Package mocks provides testify mocks for the browser interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/booksweep/booksweep/pkg/browser"
)

// MockPage is a mock implementation of browser.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) URL() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockPage) Navigate(ctx context.Context, url string, opts browser.NavigateOptions) error {
	args := m.Called(ctx, url, opts)

	return args.Error(0)
}

func (m *MockPage) Reload(ctx context.Context, timeout time.Duration) error {
	args := m.Called(ctx, timeout)

	return args.Error(0)
}

func (m *MockPage) WaitForURL(ctx context.Context, pattern string, timeout time.Duration) error {
	args := m.Called(ctx, pattern, timeout)

	return args.Error(0)
}

func (m *MockPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	args := m.Called(ctx, selector, timeout)

	return args.Error(0)
}

func (m *MockPage) Locator(selector string) browser.Locator {
	args := m.Called(selector)
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(browser.Locator)
}

func (m *MockPage) Evaluate(ctx context.Context, script string) (any, error) {
	args := m.Called(ctx, script)

	return args.Get(0), args.Error(1)
}

func (m *MockPage) Press(ctx context.Context, key string) error {
	args := m.Called(ctx, key)

	return args.Error(0)
}

func (m *MockPage) Screenshot(ctx context.Context, path string) error {
	args := m.Called(ctx, path)

	return args.Error(0)
}

func (m *MockPage) Content(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *MockPage) ExpectDownload(ctx context.Context, timeout time.Duration, trigger func() error) (browser.Download, error) {
	if trigger != nil {
		if err := trigger(); err != nil {
			return nil, err
		}
	}

	args := m.Called(ctx, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(browser.Download), args.Error(1)
}

func (m *MockPage) ExpectPage(ctx context.Context, timeout time.Duration, trigger func() error) (browser.Page, error) {
	if trigger != nil {
		if err := trigger(); err != nil {
			return nil, err
		}
	}

	args := m.Called(ctx, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(browser.Page), args.Error(1)
}

// MockLocator is a mock implementation of browser.Locator.
type MockLocator struct {
	mock.Mock
}

func (m *MockLocator) First() browser.Locator {
	args := m.Called()
	if args.Get(0) == nil {
		return m
	}

	return args.Get(0).(browser.Locator)
}

func (m *MockLocator) Nth(i int) browser.Locator {
	args := m.Called(i)
	if args.Get(0) == nil {
		return m
	}

	return args.Get(0).(browser.Locator)
}

func (m *MockLocator) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)

	return args.Int(0), args.Error(1)
}

func (m *MockLocator) IsVisible(ctx context.Context, timeout time.Duration) (bool, error) {
	args := m.Called(ctx, timeout)

	return args.Bool(0), args.Error(1)
}

func (m *MockLocator) WaitVisible(ctx context.Context, timeout time.Duration) error {
	args := m.Called(ctx, timeout)

	return args.Error(0)
}

func (m *MockLocator) Click(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockLocator) Fill(ctx context.Context, value string) error {
	args := m.Called(ctx, value)

	return args.Error(0)
}

func (m *MockLocator) TextContent(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *MockLocator) InputValue(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *MockLocator) GetAttribute(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)

	return args.String(0), args.Error(1)
}

func (m *MockLocator) IsChecked(ctx context.Context) (bool, error) {
	args := m.Called(ctx)

	return args.Bool(0), args.Error(1)
}

func (m *MockLocator) ScrollIntoView(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockLocator) Locator(selector string) browser.Locator {
	args := m.Called(selector)
	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(browser.Locator)
}

func (m *MockLocator) Evaluate(ctx context.Context, script string) (any, error) {
	args := m.Called(ctx, script)

	return args.Get(0), args.Error(1)
}

// MockDownload is a mock implementation of browser.Download.
type MockDownload struct {
	mock.Mock
}

func (m *MockDownload) SuggestedFilename() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockDownload) Path(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *MockDownload) Failure(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *MockDownload) SaveAs(ctx context.Context, path string) error {
	args := m.Called(ctx, path)

	return args.Error(0)
}
