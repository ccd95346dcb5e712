package service

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
)

const (
	StrategyRoundRobin = "round_robin"
	StrategyRandom     = "random"
)

// chooseAssignee picks a CSR for a new ticket, or nil when none exist.
//
// round_robin reads the most recently assigned ticket and advances one
// position in the current CSR list, wrapping; if that CSR has since
// disappeared the cycle restarts at index 0. Two concurrent creations can
// read the same "last assigned" value and both advance from it — an accepted
// approximation, not a fairness guarantee.
func (s *TicketService) chooseAssignee(ctx context.Context) (*uuid.UUID, error) {
	csrs, err := s.Repo.ListCSRs(ctx)
	if err != nil {
		return nil, err
	}
	if len(csrs) == 0 {
		return nil, nil
	}

	if s.Strategy == StrategyRandom {
		id := csrs[rand.Intn(len(csrs))].ID
		return &id, nil
	}

	last, err := s.Repo.LastAssignedCSR(ctx)
	if err != nil {
		return nil, err
	}

	next := 0
	if last != nil {
		for i, csr := range csrs {
			if csr.ID == *last {
				next = (i + 1) % len(csrs)
				break
			}
		}
	}

	id := csrs[next].ID
	return &id, nil
}
