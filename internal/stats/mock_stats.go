package stats

import "github.com/stretchr/testify/mock"

// MockStatsProvider is a testify mock of StatsProvider for relay tests
// that do not want a live expvar-backed updater.
type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) Incr(name string) {
	m.Called(name)
}

func (m *MockStatsProvider) Decr(name string) {
	m.Called(name)
}

func (m *MockStatsProvider) RegisterMetric(name string) {
	m.Called(name)
}

func (m *MockStatsProvider) Run() {
	m.Called()
}
