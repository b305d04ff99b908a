package services

import (
	"sync"

	"github.com/stellar/go/support/log"

	"github.com/saif727/hedera-wallet-backend/ledger"
)

// session is one installed operator identity. Operations hold it for their
// whole duration, so replacing the operator never changes the identity of a
// transaction that is already in flight.
type session struct {
	op       ledger.Operator
	inflight sync.WaitGroup
}

// retire closes the operator once every operation using it has finished.
func (s *session) retire(logger *log.Entry) {
	go func() {
		s.inflight.Wait()
		if err := s.op.Close(); err != nil {
			logger.WithFields(log.F{"operator": s.op.AccountID(), "err": err}).Warn("failed to close operator client")
		}
	}()
}
