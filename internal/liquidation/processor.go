package liquidation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ksred/nftlend-api/internal/loans"
)

// Processor is the liquidation keeper: it moves delinquent loans to auction
// and settles auctions that closed without a buyer.
type Processor struct {
	service      *Service
	loans        *loans.Service
	processDelay time.Duration
}

func NewProcessor(service *Service, loanSvc *loans.Service) *Processor {
	return &Processor{
		service:      service,
		loans:        loanSvc,
		processDelay: time.Minute,
	}
}

// Start begins the keeper loop. Blocks until the context is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "liquidation_processor").Logger()
	logger.Info().Msg("starting liquidation processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down liquidation processor")
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick runs one keeper pass. Exported so tests and the simulation can drive
// the processor without the ticker.
func (p *Processor) Tick() {
	logger := log.With().Str("component", "liquidation_processor").Logger()

	late, err := p.loans.LateLoans()
	if err != nil {
		logger.Error().Err(err).Msg("failed to list late loans")
	} else {
		for i := range late {
			if _, err := p.loans.Liquidate(late[i].LoanID); err != nil {
				logger.Error().Err(err).
					Str("loan_id", late[i].LoanID).
					Msg("failed to liquidate late loan")
				continue
			}
			logger.Info().
				Str("loan_id", late[i].LoanID).
				Msg("late loan sent to auction")
		}
	}

	expired, err := p.service.ExpireDue()
	if err != nil {
		logger.Error().Err(err).Msg("failed to expire auctions")
		return
	}
	if expired > 0 {
		logger.Info().Int("expired", expired).Msg("unsold auctions settled")
	}
}
