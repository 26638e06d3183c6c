package nats

import (
	"context"
	"slices"
	"sync"
)

// MockPublisher records published events in memory.
type MockPublisher struct {
	mu        sync.Mutex
	donations []*DonationEvent
	campaigns []*CampaignEvent
	err       error
	closed    bool
}

var _ Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishDonation(ctx context.Context, event *DonationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.donations = append(m.donations, event)
	return nil
}

func (m *MockPublisher) PublishCampaign(ctx context.Context, event *CampaignEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.campaigns = append(m.campaigns, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Donations returns a copy of every recorded donation event.
func (m *MockPublisher) Donations() []*DonationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.donations)
}

// DonationsFor returns the recorded donation events for one campaign.
func (m *MockPublisher) DonationsFor(campaignID string) []*DonationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*DonationEvent
	for _, e := range m.donations {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	return out
}

// Campaigns returns a copy of every recorded campaign event.
func (m *MockPublisher) Campaigns() []*CampaignEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.campaigns)
}

// FailWith makes every later publish return err. nil restores normal behaviour.
func (m *MockPublisher) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Reset forgets recorded events, the failure and the closed flag.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donations, m.campaigns = nil, nil
	m.err = nil
	m.closed = false
}
