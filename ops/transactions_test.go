package ops

import (
	"errors"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/interactive/common"
)

func TestCaptureTransaction(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodCapture, &captureParams{TransactionID: "tx-1"}).Return(reply(`{}`), nil)

	err := s.Transactions().Capture("tx-1")
	assert.NoError(t, err, "Not expecting call to fail")
	mcli.AssertExpectations(t)
}

func TestCaptureTransactionFailure(t *testing.T) {
	s, mcli := newOpsSessionWithMockClient(t)
	mcli.On("Call", common.MethodCapture, &captureParams{TransactionID: "tx-1"}).
		Return(nil, errors.New("failed"))

	err := s.Transactions().Capture("tx-1")
	assert.Error(t, err, "Expecting call to fail")
}
