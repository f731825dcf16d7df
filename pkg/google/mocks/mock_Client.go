// Package mocks provides test doubles for the google client.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	google "github.com/sergi039/idealista-tracker-ai-sub000/pkg/google"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Nearby provides a mock function with given fields: ctx, req
func (_m *MockClient) Nearby(ctx context.Context, req google.NearbyRequest) ([]google.Place, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for Nearby")
	}

	var r0 []google.Place
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, google.NearbyRequest) ([]google.Place, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, google.NearbyRequest) []google.Place); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]google.Place)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, google.NearbyRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DistanceMatrix provides a mock function with given fields: ctx, origin, destinations
func (_m *MockClient) DistanceMatrix(ctx context.Context, origin google.LatLng, destinations []string) ([]*google.Leg, error) {
	ret := _m.Called(ctx, origin, destinations)

	if len(ret) == 0 {
		panic("no return value specified for DistanceMatrix")
	}

	var r0 []*google.Leg
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, google.LatLng, []string) ([]*google.Leg, error)); ok {
		return rf(ctx, origin, destinations)
	}
	if rf, ok := ret.Get(0).(func(context.Context, google.LatLng, []string) []*google.Leg); ok {
		r0 = rf(ctx, origin, destinations)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]*google.Leg)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, google.LatLng, []string) error); ok {
		r1 = rf(ctx, origin, destinations)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
