package liquidation

import (
	"math/big"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/nftlend-api/internal/loans"
	"github.com/ksred/nftlend-api/internal/types"
	"github.com/ksred/nftlend-api/pkg/response"
)

// AuctionDuration is the Dutch auction window. The price reaches zero at the
// end, so an unsold auction is simply a zero-proceeds settlement.
const AuctionDuration = 7 * 24 * time.Hour

// Service runs Dutch auctions for defaulted loans. It implements
// loans.Liquidator for the auction start and calls back into the loan
// service to settle.
type Service struct {
	db      *Database
	loans   *loans.Service
	nowFunc func() time.Time
}

func NewService(gormDB *gorm.DB, loanSvc *loans.Service) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		loans:   loanSvc,
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *Service) SetNowFunc(now func() time.Time) { s.nowFunc = now }

// Start opens an auction for the loan's collateral inside the caller's
// transaction. Satisfies loans.Liquidator.
func (s *Service) Start(tx *gorm.DB, loan *types.Loan, startingPrice *big.Int) error {
	now := s.nowFunc()
	liq := &types.Liquidation{
		LiquidationID:     "LIQ_" + uuid.New().String(),
		LoanID:            loan.LoanID,
		PoolID:            loan.PoolID,
		CollectionAddress: loan.CollectionAddress,
		TokenID:           loan.TokenID,
		Borrower:          loan.Borrower,
		StartingPrice:     types.NewBigInt(startingPrice),
		StartAt:           now,
		EndAt:             now.Add(AuctionDuration),
		Status:            types.LiquidationStatusActive,
	}
	if err := tx.Create(liq).Error; err != nil {
		return err
	}

	log.Info().
		Str("liquidation_id", liq.LiquidationID).
		Str("loan_id", loan.LoanID).
		Str("starting_price", startingPrice.String()).
		Time("end_at", liq.EndAt).
		Msg("auction opened")
	return nil
}

// PriceAt returns the auction price at the given instant: a linear decay
// from the starting price to zero over the auction window.
func PriceAt(liq *types.Liquidation, at time.Time) *big.Int {
	if !at.After(liq.StartAt) {
		return liq.StartingPrice.Int()
	}
	if !at.Before(liq.EndAt) {
		return new(big.Int)
	}
	remaining := big.NewInt(int64(liq.EndAt.Sub(at)))
	window := big.NewInt(int64(liq.EndAt.Sub(liq.StartAt)))
	price := new(big.Int).Mul(liq.StartingPrice.Int(), remaining)
	return price.Quo(price, window)
}

// Buy purchases the collateral at the current auction price. The payment
// becomes the pool's proceeds and the loan closes in the same transaction.
func (s *Service) Buy(liquidationID, buyer string, payment *big.Int) (*BuyResponse, error) {
	logger := log.With().
		Str("liquidation_id", liquidationID).
		Str("buyer", buyer).
		Str("service", "liquidation").
		Logger()

	if payment == nil || payment.Sign() <= 0 {
		return nil, types.ErrInvalidAmount
	}

	var (
		liq   *types.Liquidation
		price *big.Int
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		liq, err = findLiquidation(tx, liquidationID)
		if err != nil {
			return err
		}
		if liq.Status != types.LiquidationStatusActive {
			return types.ErrLiquidationEnded
		}
		now := s.nowFunc()
		if !now.Before(liq.EndAt) {
			return types.ErrLiquidationEnded
		}
		price = PriceAt(liq, now)
		if payment.Cmp(price) < 0 {
			return types.ErrPaymentBelowPrice
		}

		if err := s.loans.SettleLiquidation(tx, liq.LoanID, types.CustodyBuyer, payment); err != nil {
			return err
		}
		liq.Status = types.LiquidationStatusSold
		liq.Buyer = buyer
		liq.SalePrice = types.NewBigInt(payment)
		return saveLiquidation(tx, liq)
	})
	if err != nil {
		logger.Error().Err(err).Msg("auction buy failed")
		return nil, err
	}

	logger.Info().
		Str("loan_id", liq.LoanID).
		Str("price", price.String()).
		Str("payment", payment.String()).
		Msg("collateral sold at auction")

	return &BuyResponse{
		LiquidationID: liq.LiquidationID,
		LoanID:        liq.LoanID,
		TokenID:       liq.TokenID,
		Buyer:         buyer,
		SalePrice:     liq.SalePrice,
		Status:        liq.Status,
	}, nil
}

// ExpireDue settles every auction whose window has closed without a buyer.
// The pool keeps the collateral and books zero proceeds.
func (s *Service) ExpireDue() (int, error) {
	active, err := s.db.ListActive()
	if err != nil {
		return 0, err
	}

	now := s.nowFunc()
	expired := 0
	for i := range active {
		liq := &active[i]
		if now.Before(liq.EndAt) {
			continue
		}
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.loans.SettleLiquidation(tx, liq.LoanID, types.CustodyPool, new(big.Int)); err != nil {
				return err
			}
			liq.Status = types.LiquidationStatusExpired
			return saveLiquidation(tx, liq)
		})
		if err != nil {
			log.Error().Err(err).
				Str("liquidation_id", liq.LiquidationID).
				Msg("failed to expire auction")
			continue
		}
		expired++
		log.Info().
			Str("liquidation_id", liq.LiquidationID).
			Str("loan_id", liq.LoanID).
			Msg("auction expired unsold")
	}
	return expired, nil
}

// Get returns the auction with its live price.
func (s *Service) Get(liquidationID string) (*LiquidationResponse, error) {
	liq, err := s.db.GetLiquidation(liquidationID)
	if err != nil {
		return nil, err
	}
	return s.liquidationResponse(liq), nil
}

// ListActive returns all open auctions with live prices.
func (s *Service) ListActive() ([]LiquidationResponse, error) {
	active, err := s.db.ListActive()
	if err != nil {
		return nil, err
	}
	out := make([]LiquidationResponse, 0, len(active))
	for i := range active {
		out = append(out, *s.liquidationResponse(&active[i]))
	}
	return out, nil
}

func (s *Service) liquidationResponse(liq *types.Liquidation) *LiquidationResponse {
	return &LiquidationResponse{
		LiquidationID:     liq.LiquidationID,
		LoanID:            liq.LoanID,
		PoolID:            liq.PoolID,
		CollectionAddress: liq.CollectionAddress,
		TokenID:           liq.TokenID,
		StartingPrice:     liq.StartingPrice,
		CurrentPrice:      types.NewBigInt(PriceAt(liq, s.nowFunc())),
		StartAt:           liq.StartAt,
		EndAt:             liq.EndAt,
		Status:            liq.Status,
		Buyer:             liq.Buyer,
		SalePrice:         liq.SalePrice,
	}
}

// GinHandlers contains HTTP handlers for liquidation endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// BuyHandler handles POST requests buying auctioned collateral.
// URL parameter: liquidation_id
func (h *GinHandlers) BuyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BuyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		buyer := c.GetString("clientID")
		if buyer == "" {
			response.Unauthorized(c, "Missing buyer identity")
			return
		}
		resp, err := h.service.Buy(c.Param("liquidation_id"), buyer, req.Payment.Int())
		response.Handle(c, resp, err)
	}
}

func (h *GinHandlers) GetLiquidationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.service.Get(c.Param("liquidation_id"))
		response.Handle(c, resp, err)
	}
}

func (h *GinHandlers) ListActiveHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.service.ListActive()
		response.Handle(c, resp, err)
	}
}
