package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/platform/kafka/consumer"
	dErrors "walletfeed/pkg/domain-errors"
)

type mockWallet struct {
	mock.Mock
}

func (m *mockWallet) UpsertMessage(r models.MessageRecord) error       { return m.Called(r).Error(0) }
func (m *mockWallet) UpsertCredential(r models.CredentialRecord) error { return m.Called(r).Error(0) }
func (m *mockWallet) UpsertProof(r models.ProofRecord) error           { return m.Called(r).Error(0) }
func (m *mockWallet) DeleteMessage(id string) error                    { return m.Called(id).Error(0) }
func (m *mockWallet) DeleteCredential(id string) error                 { return m.Called(id).Error(0) }
func (m *mockWallet) DeleteProof(id string) error                      { return m.Called(id).Error(0) }
func (m *mockWallet) SetAgent(agent models.AgentIdentity)              { m.Called(agent) }

type HandlerSuite struct {
	suite.Suite
	wallet  *mockWallet
	metrics *metrics.Metrics
	handler *Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.wallet = new(mockWallet)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.handler = New(s.wallet, WithMetrics(s.metrics))
}

func (s *HandlerSuite) TearDownTest() {
	s.wallet.AssertExpectations(s.T())
}

func (s *HandlerSuite) handle(value string) error {
	return s.handler.Handle(context.Background(), &consumer.Message{Topic: "wallet.records", Value: []byte(value)})
}

var created = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func (s *HandlerSuite) TestUpsertMessage() {
	s.wallet.On("UpsertMessage", models.MessageRecord{
		ID:           "msg-1",
		ConnectionID: "conn-1",
		CreatedAt:    created,
		Content:      "hello",
		Metadata:     models.MessageMetadata{Seen: models.Recorded(false)},
	}).Return(nil).Once()

	err := s.handle(`{"kind":"message","op":"upsert","record":{"id":"msg-1","connection_id":"conn-1","created_at":"2024-05-01T12:00:00Z","content":"hello","metadata":{"seen":false}}}`)

	s.Require().NoError(err)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.IngestEventsTotal.WithLabelValues(KindMessage)))
}

func (s *HandlerSuite) TestUpsertCredentialWithRevocation() {
	s.wallet.On("UpsertCredential", mock.MatchedBy(func(c models.CredentialRecord) bool {
		return c.ID == "cred-1" &&
			c.State == models.CredentialDone &&
			c.IsRevoked() &&
			c.Metadata.RevokedSeen.IsSet()
	})).Return(nil).Once()

	err := s.handle(`{"kind":"credential","op":"upsert","record":{"id":"cred-1","created_at":"2024-05-01T12:00:00Z","state":"done","revocation_notification":{"revocation_date":"2024-05-02T00:00:00Z"},"metadata":{"revoked_seen":"true"}}}`)

	s.Require().NoError(err)
}

func (s *HandlerSuite) TestMalformedMetadataIsUnrecorded() {
	s.Run("number", func() {
		s.wallet.On("UpsertProof", mock.MatchedBy(func(p models.ProofRecord) bool {
			return p.ID == "proof-1" && !p.Metadata.DetailsSeen.IsRecorded()
		})).Return(nil).Once()

		err := s.handle(`{"kind":"proof","op":"upsert","record":{"id":"proof-1","created_at":"2024-05-01T12:00:00Z","state":"done","metadata":{"details_seen":1}}}`)
		s.Require().NoError(err)
	})

	s.Run("missing metadata", func() {
		s.wallet.On("UpsertProof", mock.MatchedBy(func(p models.ProofRecord) bool {
			return p.ID == "proof-2" && !p.Metadata.DetailsSeen.IsRecorded()
		})).Return(nil).Once()

		err := s.handle(`{"kind":"proof","op":"upsert","record":{"id":"proof-2","created_at":"2024-05-01T12:00:00Z","state":"request-received"}}`)
		s.Require().NoError(err)
	})
}

func (s *HandlerSuite) TestAgentChange() {
	s.wallet.On("SetAgent", models.AgentIdentity{ID: "agent-2", Label: "work"}).Once()

	s.Require().NoError(s.handle(`{"kind":"agent","op":"upsert","record":{"id":"agent-2","label":"work"}}`))
}

func (s *HandlerSuite) TestDelete() {
	s.Run("applies delete", func() {
		s.wallet.On("DeleteCredential", "cred-1").Return(nil).Once()
		s.Require().NoError(s.handle(`{"kind":"credential","op":"delete","record":{"id":"cred-1"}}`))
	})

	s.Run("missing record is ignored", func() {
		s.wallet.On("DeleteMessage", "gone").Return(dErrors.New(dErrors.CodeNotFound, "message gone not found")).Once()
		s.Require().NoError(s.handle(`{"kind":"message","op":"delete","record":{"id":"gone"}}`))
	})
}

func (s *HandlerSuite) TestRejectedEventsAreSkipped() {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `not-json`},
		{"unknown kind", `{"kind":"badge","op":"upsert","record":{"id":"b"}}`},
		{"unknown op", `{"kind":"message","op":"patch","record":{"id":"m"}}`},
		{"missing record", `{"kind":"message","op":"upsert"}`},
		{"record of wrong shape", `{"kind":"message","op":"upsert","record":[1,2]}`},
		{"agent without ID", `{"kind":"agent","op":"upsert","record":{"label":"x"}}`},
		{"agent delete", `{"kind":"agent","op":"delete","record":{"id":"a"}}`},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			s.NoError(s.handle(tc.value))
		})
	}
	s.Equal(float64(len(tests)), testutil.ToFloat64(s.metrics.IngestRejectedTotal))
}

func (s *HandlerSuite) TestStoreValidationIsSkipped() {
	s.wallet.On("UpsertProof", mock.Anything).Return(dErrors.New(dErrors.CodeInvalidInput, "invalid proof state")).Once()

	s.Require().NoError(s.handle(`{"kind":"proof","op":"upsert","record":{"id":"p","state":"archived"}}`))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.IngestRejectedTotal))
}

func (s *HandlerSuite) TestStoreFailureIsRetried() {
	s.wallet.On("UpsertMessage", mock.Anything).Return(errors.New("disk full")).Once()

	err := s.handle(`{"kind":"message","op":"upsert","record":{"id":"m"}}`)
	s.Require().Error(err)
	s.Contains(err.Error(), "disk full")
}

func (s *HandlerSuite) TestNewPanicsWithoutWallet() {
	s.Panics(func() { New(nil) })
}
