package loans

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/nftlend-api/internal/oracle"
	"github.com/ksred/nftlend-api/internal/pool"
	"github.com/ksred/nftlend-api/internal/settlement"
	"github.com/ksred/nftlend-api/internal/types"
	"github.com/ksred/nftlend-api/pkg/response"
)

// Liquidator starts a collateral auction for a loan inside the caller's
// transaction. Implemented by the liquidation package and injected after
// construction to keep the dependency one-directional.
type Liquidator interface {
	Start(tx *gorm.DB, loan *types.Loan, startingPrice *big.Int) error
}

// Service owns the loan lifecycle: origination, installment refunds and the
// handoff into liquidation.
type Service struct {
	db         *Database
	pools      *pool.Service
	verifier   *oracle.Verifier
	registry   *settlement.Registry
	liquidator Liquidator
	nowFunc    func() time.Time
}

func NewService(gormDB *gorm.DB, pools *pool.Service, verifier *oracle.Verifier, registry *settlement.Registry) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		pools:    pools,
		verifier: verifier,
		registry: registry,
		nowFunc:  time.Now,
	}
}

// SetLiquidator injects the auction starter. Must be called before any
// liquidation is triggered.
func (s *Service) SetLiquidator(l Liquidator) { s.liquidator = l }

// SetNowFunc overrides the clock, for tests.
func (s *Service) SetNowFunc(now func() time.Time) { s.nowFunc = now }

// BuyNFT originates a loan. The whole operation is one transaction: oracle
// authorization, principal reservation, loan creation and the settlement
// purchase either all land or none do.
func (s *Service) BuyNFT(borrower string, req BuyNFTRequest) (*types.LoanResponse, error) {
	logger := log.With().
		Str("pool_id", req.PoolID).
		Str("token_id", req.TokenID).
		Str("borrower", borrower).
		Str("service", "loans").
		Logger()

	tokenID, ok := new(big.Int).SetString(req.TokenID, 10)
	if !ok {
		return nil, fmt.Errorf("%w: token id %q", types.ErrInvalidAmount, req.TokenID)
	}
	extraData, err := decodeHex(req.ExtraData)
	if err != nil {
		return nil, fmt.Errorf("%w: extra data", types.ErrInvalidAmount)
	}
	signature, err := decodeHex(req.OracleSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed signature", types.ErrOracleSignature)
	}
	if req.NFTPrice.Sign() <= 0 || req.DownPayment.Sign() <= 0 {
		return nil, types.ErrInvalidAmount
	}
	principal := new(big.Int).Sub(req.NFTPrice.Int(), req.DownPayment.Int())
	if principal.Sign() <= 0 {
		return nil, fmt.Errorf("%w: down payment covers full price", types.ErrInvalidAmount)
	}

	var loan *types.Loan
	err = s.db.Transaction(func(tx *gorm.DB) error {
		p, err := findPool(tx, req.PoolID)
		if err != nil {
			return err
		}
		if err := CheckLTV(req.DownPayment.Int(), req.NFTPrice.Int(), p.LoanToValueBps); err != nil {
			return err
		}
		existing, err := findOpenLoanByToken(tx, p.PoolID, req.TokenID)
		if err != nil {
			return err
		}
		if existing != nil {
			return types.ErrLoanAlreadyOpen
		}

		terms := oracle.LoanTerms{
			ChainID:       req.ChainID,
			Collection:    common.HexToAddress(req.CollectionAddress),
			TokenID:       tokenID,
			Price:         req.NFTPrice.Int(),
			FloorPrice:    req.FloorPrice.Int(),
			PriceWithFees: req.PriceWithFees.Int(),
			Borrower:      common.HexToAddress(borrower),
			Nonce:         req.OracleNonce,
			Timestamp:     time.Unix(req.OracleTimestamp, 0).UTC(),
			ExtraData:     extraData,
		}
		if err := s.verifier.Verify(terms, signature); err != nil {
			return err
		}
		if err := consumeNonce(tx, borrower, req.OracleNonce); err != nil {
			return err
		}

		duration := time.Duration(req.DurationSeconds) * time.Second
		price, err := CalculateLoanPrice(principal, duration, p.DailyInterestRateBps)
		if err != nil {
			return err
		}
		if _, err := s.pools.ReservePrincipal(tx, p.PoolID, price.Principal, price.TotalOwed); err != nil {
			return err
		}

		now := s.nowFunc()
		firstDue := now.Add(PaymentInterval)
		if expiry := now.Add(duration); expiry.Before(firstDue) {
			firstDue = expiry
		}
		loan = &types.Loan{
			LoanID:                 "LOAN_" + uuid.New().String(),
			PoolID:                 p.PoolID,
			CollectionAddress:      req.CollectionAddress,
			TokenID:                req.TokenID,
			Borrower:               borrower,
			Principal:              types.NewBigInt(price.Principal),
			DownPayment:            req.DownPayment,
			NFTPrice:               req.NFTPrice,
			DailyRateBps:           p.DailyInterestRateBps,
			StartAt:                now,
			DurationSeconds:        req.DurationSeconds,
			AmountOwedWithInterest: types.NewBigInt(price.TotalOwed),
			TotalInterest:          types.NewBigInt(price.TotalInterest),
			InstallmentAmount:      types.NewBigInt(price.InstallmentAmount),
			InterestPerPayment:     types.NewBigInt(price.InterestPerPayment),
			NextPaymentDue:         firstDue,
			Installments:           price.Installments,
			Status:                 types.LoanStatusOpen,
			CustodyHolder:          types.CustodyPool,
		}
		if err := tx.Create(loan).Error; err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}

		// The purchase executes last so any settlement failure rolls the
		// reservation and the loan row back together.
		manager, err := s.registry.Get(req.SettlementManager)
		if err != nil {
			return err
		}
		if err := manager.ExecutePurchase(req.CollectionAddress, req.TokenID, extraData, req.NFTPrice.Int()); err != nil {
			return fmt.Errorf("%w: %v", types.ErrSettlementFailed, err)
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("loan origination failed")
		return nil, err
	}

	logger.Info().
		Str("loan_id", loan.LoanID).
		Str("principal", loan.Principal.String()).
		Str("amount_owed", loan.AmountOwedWithInterest.String()).
		Int("installments", loan.Installments).
		Msg("loan originated")

	return s.loanResponse(loan), nil
}

// Refund pays exactly one installment. The final installment clears the
// remaining balance, closes the loan and releases custody to the borrower.
func (s *Service) Refund(loanID, payer string, amount *big.Int) (*RefundResponse, error) {
	logger := log.With().
		Str("loan_id", loanID).
		Str("payer", payer).
		Str("service", "loans").
		Logger()

	if amount == nil || amount.Sign() <= 0 {
		return nil, types.ErrInvalidAmount
	}

	var loan *types.Loan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = findLoan(tx, loanID)
		if err != nil {
			return err
		}
		switch loan.Status {
		case types.LoanStatusInLiquidation:
			return types.ErrLoanInLiquidation
		case types.LoanStatusClosedRepaid, types.LoanStatusClosedLiquidated:
			return types.ErrLoanClosed
		}
		now := s.nowFunc()
		if now.After(loan.Expiry()) {
			return types.ErrLoanExpired
		}

		expected := InstallmentDue(loan)
		if amount.Cmp(expected) != 0 {
			return fmt.Errorf("%w: expected %s", types.ErrIncorrectPayment, expected)
		}

		// Interest portion of this installment. The final installment
		// carries whatever interest the per-payment floor left over.
		interestPortion := loan.InterestPerPayment.Int()
		if loan.InstallmentsPaid == loan.Installments-1 {
			priorInterest := new(big.Int).Mul(interestPortion, big.NewInt(int64(loan.Installments-1)))
			interestPortion = new(big.Int).Sub(loan.TotalInterest.Int(), priorInterest)
		}
		if err := s.pools.CreditRepayment(tx, loan.PoolID, amount, interestPortion); err != nil {
			return err
		}

		loan.AmountOwedWithInterest = loan.AmountOwedWithInterest.Sub(amount)
		loan.InstallmentsPaid++
		if loan.InstallmentsPaid >= loan.Installments || loan.AmountOwedWithInterest.IsZero() {
			loan.Status = types.LoanStatusClosedRepaid
			loan.CustodyHolder = types.CustodyBorrower
		} else {
			loan.Status = types.LoanStatusPartiallyRepaid
			next := loan.NextPaymentDue.Add(PaymentInterval)
			if expiry := loan.Expiry(); next.After(expiry) {
				next = expiry
			}
			loan.NextPaymentDue = next
		}
		return saveLoan(tx, loan)
	})
	if err != nil {
		logger.Error().Err(err).Msg("refund failed")
		return nil, err
	}

	logger.Info().
		Str("amount", amount.String()).
		Int("installments_paid", loan.InstallmentsPaid).
		Str("status", loan.Status).
		Msg("installment paid")

	return &RefundResponse{
		LoanID:                 loan.LoanID,
		AmountPaid:             types.NewBigInt(amount),
		AmountOwedWithInterest: loan.AmountOwedWithInterest,
		InstallmentsPaid:       loan.InstallmentsPaid,
		Installments:           loan.Installments,
		NextPaymentDue:         loan.NextPaymentDue,
		Status:                 loan.Status,
		CustodyHolder:          loan.CustodyHolder,
	}, nil
}

// Liquidate moves a delinquent loan into liquidation and starts the auction
// at the full amount owed. A loan is delinquent when an installment deadline
// or the loan expiry has passed.
func (s *Service) Liquidate(loanID string) (*types.LoanResponse, error) {
	logger := log.With().
		Str("loan_id", loanID).
		Str("service", "loans").
		Logger()

	var loan *types.Loan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = findLoan(tx, loanID)
		if err != nil {
			return err
		}
		switch loan.Status {
		case types.LoanStatusInLiquidation:
			return types.ErrLoanInLiquidation
		case types.LoanStatusClosedRepaid, types.LoanStatusClosedLiquidated:
			return types.ErrLoanClosed
		}
		now := s.nowFunc()
		if !now.After(loan.NextPaymentDue) && !now.After(loan.Expiry()) {
			return types.ErrPaymentNotLate
		}
		if s.liquidator == nil {
			return fmt.Errorf("loans: no liquidator configured")
		}

		loan.Status = types.LoanStatusInLiquidation
		loan.CustodyHolder = types.CustodyLiquidator
		if err := saveLoan(tx, loan); err != nil {
			return err
		}
		return s.liquidator.Start(tx, loan, loan.AmountOwedWithInterest.Int())
	})
	if err != nil {
		logger.Error().Err(err).Msg("liquidation trigger failed")
		return nil, err
	}

	logger.Info().
		Str("starting_price", loan.AmountOwedWithInterest.String()).
		Msg("loan moved to liquidation")

	return s.loanResponse(loan), nil
}

// SettleLiquidation closes a liquidated loan within the auction's
// transaction. Proceeds of zero mean the auction expired unsold and the
// collateral stays with the pool.
func (s *Service) SettleLiquidation(tx *gorm.DB, loanID, custodyHolder string, proceeds *big.Int) error {
	loan, err := findLoan(tx, loanID)
	if err != nil {
		return err
	}
	if loan.Status != types.LoanStatusInLiquidation {
		return types.ErrLoanClosed
	}

	owed := loan.AmountOwedWithInterest.Int()
	if err := s.pools.ApplyLiquidationOutcome(tx, loan.PoolID, proceeds, owed); err != nil {
		return err
	}

	loan.Status = types.LoanStatusClosedLiquidated
	loan.CustodyHolder = custodyHolder
	loan.AmountOwedWithInterest = types.BigIntFromInt64(0)
	if err := saveLoan(tx, loan); err != nil {
		return err
	}

	log.Info().
		Str("loan_id", loanID).
		Str("proceeds", proceeds.String()).
		Str("amount_owed", owed.String()).
		Str("custody", custodyHolder).
		Msg("liquidation settled")
	return nil
}

// Quote prices a prospective loan against the pool's current aggregate rate
// without persisting anything.
func (s *Service) Quote(poolID string, req QuoteRequest) (*types.LoanPriceResponse, error) {
	p, err := s.db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	if req.NFTPrice.Sign() <= 0 || req.DownPayment.Sign() <= 0 {
		return nil, types.ErrInvalidAmount
	}
	if err := CheckLTV(req.DownPayment.Int(), req.NFTPrice.Int(), p.LoanToValueBps); err != nil {
		return nil, err
	}
	principal := new(big.Int).Sub(req.NFTPrice.Int(), req.DownPayment.Int())
	if principal.Sign() <= 0 {
		return nil, fmt.Errorf("%w: down payment covers full price", types.ErrInvalidAmount)
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	price, err := CalculateLoanPrice(principal, duration, p.DailyInterestRateBps)
	if err != nil {
		return nil, err
	}
	return &types.LoanPriceResponse{
		Principal:              types.NewBigInt(price.Principal),
		DurationDays:           ceilDiv64(req.DurationSeconds, secondsPerDay),
		DailyRateBps:           p.DailyInterestRateBps,
		TotalRepaymentWithFees: types.NewBigInt(price.TotalOwed),
		InterestPerPayment:     types.NewBigInt(price.InterestPerPayment),
		InstallmentAmount:      types.NewBigInt(price.InstallmentAmount),
		Installments:           price.Installments,
	}, nil
}

// GetLoan returns the public view of a loan.
func (s *Service) GetLoan(loanID string) (*types.LoanResponse, error) {
	loan, err := s.db.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	return s.loanResponse(loan), nil
}

// ListByBorrower returns all of a borrower's loans.
func (s *Service) ListByBorrower(borrower string) ([]types.LoanResponse, error) {
	loans, err := s.db.ListLoansByBorrower(borrower)
	if err != nil {
		return nil, err
	}
	out := make([]types.LoanResponse, 0, len(loans))
	for i := range loans {
		out = append(out, *s.loanResponse(&loans[i]))
	}
	return out, nil
}

// LateLoans returns loans eligible for liquidation as of now.
func (s *Service) LateLoans() ([]types.Loan, error) {
	return s.db.ListLateLoans(s.nowFunc())
}

func (s *Service) loanResponse(l *types.Loan) *types.LoanResponse {
	return &types.LoanResponse{
		LoanID:                 l.LoanID,
		PoolID:                 l.PoolID,
		CollectionAddress:      l.CollectionAddress,
		TokenID:                l.TokenID,
		Borrower:               l.Borrower,
		Principal:              l.Principal,
		DailyRateBps:           l.DailyRateBps,
		AmountOwedWithInterest: l.AmountOwedWithInterest,
		InstallmentAmount:      l.InstallmentAmount,
		NextPaymentDue:         l.NextPaymentDue,
		Installments:           l.Installments,
		InstallmentsPaid:       l.InstallmentsPaid,
		Status:                 l.Status,
		CustodyHolder:          l.CustodyHolder,
		StartAt:                l.StartAt,
		Expiry:                 l.Expiry(),
	}
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(s)
}

// GinHandlers contains HTTP handlers for loan endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// BuyNFTHandler handles POST requests to originate a loan.
func (h *GinHandlers) BuyNFTHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BuyNFTRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		borrower := c.GetString("clientID")
		if borrower == "" {
			response.Unauthorized(c, "Missing borrower identity")
			return
		}
		resp, err := h.service.BuyNFT(borrower, req)
		response.Handle(c, resp, err)
	}
}

// RefundHandler handles POST requests paying one installment.
// URL parameter: loan_id
func (h *GinHandlers) RefundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		payer := c.GetString("clientID")
		if payer == "" {
			response.Unauthorized(c, "Missing payer identity")
			return
		}
		resp, err := h.service.Refund(c.Param("loan_id"), payer, req.Amount.Int())
		response.Handle(c, resp, err)
	}
}

// LiquidateHandler handles POST requests moving a late loan to auction.
// Requires internal authentication.
func (h *GinHandlers) LiquidateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.service.Liquidate(c.Param("loan_id"))
		response.Handle(c, resp, err)
	}
}

func (h *GinHandlers) GetLoanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.service.GetLoan(c.Param("loan_id"))
		response.Handle(c, resp, err)
	}
}

// ListLoansHandler returns the caller's loans.
func (h *GinHandlers) ListLoansHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		borrower := c.Query("address")
		if borrower == "" {
			borrower = c.GetString("clientID")
		}
		if borrower == "" {
			response.Unauthorized(c, "Missing borrower identity")
			return
		}
		resp, err := h.service.ListByBorrower(borrower)
		response.Handle(c, resp, err)
	}
}

// QuoteHandler prices a prospective loan.
// URL parameter: pool_id
func (h *GinHandlers) QuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QuoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		resp, err := h.service.Quote(c.Param("pool_id"), req)
		response.Handle(c, resp, err)
	}
}
