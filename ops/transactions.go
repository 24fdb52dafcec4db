package ops

import (
	"github.com/damianoneill/interactive/client"
	"github.com/damianoneill/interactive/common"
)

// TransactionsService composes the transaction methods. A transaction id
// arrives on an input event whose control carries a cost; capturing it
// charges the participant.
type TransactionsService struct {
	s client.Session
}

// Capture completes the transaction with the supplied id.
func (ts *TransactionsService) Capture(transactionID string) error {
	_, err := ts.s.Call(common.MethodCapture, &captureParams{TransactionID: transactionID})
	return err
}

type captureParams struct {
	TransactionID string `json:"transactionID"`
}
