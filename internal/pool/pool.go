package pool

import (
	"fmt"
	"math/big"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/nftlend-api/internal/types"
	"github.com/ksred/nftlend-api/pkg/response"
)

const (
	// BpsDenominator is the basis-point scale shared by all rate and fee math.
	BpsDenominator = 10_000

	// DefaultProtocolFeeBps is the share of each installment's interest
	// skimmed to the fee collector when pool creation does not override it.
	DefaultProtocolFeeBps = 1_500
)

// minimalDepositAtCreation keeps pools from being created empty: 1 ether.
var minimalDepositAtCreation = big.NewInt(1_000_000_000_000_000_000)

// Service owns the share vault, the rate-vote aggregate and the vesting
// locks for every pool.
type Service struct {
	db      *Database
	nowFunc func() time.Time
}

// NewService creates a new pool service with the given database connection.
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *Service) SetNowFunc(now func() time.Time) { s.nowFunc = now }

// Create provisions a new pool for a (collection, LTV) pair and applies the
// creator's initial deposit. At most one pool may exist per pair.
func (s *Service) Create(req CreatePoolRequest) (*types.PoolResponse, error) {
	logger := log.With().
		Str("collection", req.CollectionAddress).
		Uint64("ltv_bps", req.LoanToValueBps).
		Str("service", "pool").
		Logger()

	if req.LoanToValueBps == 0 || req.LoanToValueBps > BpsDenominator {
		return nil, fmt.Errorf("%w: ltv %d bps", types.ErrInvalidAmount, req.LoanToValueBps)
	}
	if req.MaxDailyRateBps == 0 {
		return nil, fmt.Errorf("%w: max daily rate must be positive", types.ErrInvalidAmount)
	}
	if req.InitialDeposit.CmpInt(minimalDepositAtCreation) < 0 {
		return nil, types.ErrInitialDepositTooLow
	}
	feeBps := req.ProtocolFeeBps
	if feeBps == 0 {
		feeBps = DefaultProtocolFeeBps
	}
	if feeBps > BpsDenominator {
		return nil, fmt.Errorf("%w: protocol fee %d bps", types.ErrInvalidAmount, feeBps)
	}

	p := &types.Pool{
		PoolID:            "POOL_" + uuid.New().String(),
		CollectionAddress: req.CollectionAddress,
		LoanToValueBps:    req.LoanToValueBps,
		MaxDailyRateBps:   req.MaxDailyRateBps,
		ProtocolFeeBps:    feeBps,
		FeeCollector:      req.FeeCollector,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := findPoolByCollectionAndLTV(tx, req.CollectionAddress, req.LoanToValueBps)
		if err != nil && err != types.ErrPoolNotFound {
			return err
		}
		if existing != nil {
			return types.ErrPoolExists
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create pool: %w", err)
		}
		_, _, err = s.applyDeposit(tx, p, req.Creator, req.InitialDeposit.Int(), req.DailyInterestRateBps)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("pool creation failed")
		return nil, err
	}

	logger.Info().
		Str("pool_id", p.PoolID).
		Uint64("daily_interest_rate_bps", p.DailyInterestRateBps).
		Msg("pool created")

	return s.poolResponse(p), nil
}

// Deposit implements depositAndVote: the amount joins the rate vote at the
// chosen rate, the vesting lock extends, and vault shares are minted. Rate
// and vesting state are updated before the mint so anything reading them in
// the same transaction sees the new principal.
func (s *Service) Deposit(poolID, lender string, amount *big.Int, rateBps uint64) (*DepositResponse, error) {
	logger := log.With().
		Str("pool_id", poolID).
		Str("lender", lender).
		Uint64("rate_bps", rateBps).
		Str("service", "pool").
		Logger()

	var (
		p      *types.Pool
		pos    *types.LenderPosition
		minted *big.Int
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = findPool(tx, poolID)
		if err != nil {
			return err
		}
		minted, pos, err = s.applyDeposit(tx, p, lender, amount, rateBps)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Msg("deposit failed")
		return nil, err
	}

	logger.Info().
		Str("amount", amount.String()).
		Str("shares_minted", minted.String()).
		Uint64("aggregate_rate_bps", p.DailyInterestRateBps).
		Time("vesting_unlock", pos.VestingUnlockTime).
		Msg("deposit accepted")

	return &DepositResponse{
		PoolID:               p.PoolID,
		LenderAddress:        lender,
		SharesMinted:         types.NewBigInt(minted),
		TotalShares:          p.TotalShares,
		DailyInterestRateBps: p.DailyInterestRateBps,
		VestingUnlockTime:    pos.VestingUnlockTime,
		Timestamp:            s.nowFunc(),
	}, nil
}

// applyDeposit mutates pool and position state for one deposit and persists
// both rows. Ordering matters: the vote aggregate and vesting lock reflect
// the new principal before any share is minted.
func (s *Service) applyDeposit(tx *gorm.DB, p *types.Pool, lender string, amount *big.Int, rateBps uint64) (*big.Int, *types.LenderPosition, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, types.ErrInvalidAmount
	}
	if rateBps > p.MaxDailyRateBps {
		return nil, nil, types.ErrRateTooHigh
	}

	pos, err := ensurePosition(tx, p.PoolID, lender)
	if err != nil {
		return nil, nil, err
	}

	// Rate vote first.
	weight, principal := AddVote(p.TotalRateWeight.Int(), p.TotalPrincipalDeposited.Int(), amount, rateBps)
	p.TotalRateWeight = types.NewBigInt(weight)
	p.TotalPrincipalDeposited = types.NewBigInt(principal)
	p.DailyInterestRateBps = AggregateRateBps(weight, principal)

	lenderWeight, lenderPrincipal := AddVote(pos.RateWeight.Int(), pos.PrincipalDeposited.Int(), amount, rateBps)
	pos.RateWeight = types.NewBigInt(lenderWeight)
	pos.PrincipalDeposited = types.NewBigInt(lenderPrincipal)

	// Vesting lock second; never shortens.
	now := s.nowFunc()
	pos.VestingUnlockTime = ExtendUnlock(pos.VestingUnlockTime, UnlockTime(now, rateBps))

	// Share mint last.
	totalAssets := s.totalAssets(p)
	minted := ConvertToShares(amount, p.TotalShares.Int(), totalAssets)
	if minted.Sign() == 0 {
		return nil, nil, fmt.Errorf("%w: deposit below share price", types.ErrInvalidAmount)
	}
	p.TotalShares = p.TotalShares.Add(minted)
	p.IdleAssets = p.IdleAssets.Add(amount)
	pos.Shares = pos.Shares.Add(minted)

	if err := savePool(tx, p); err != nil {
		return nil, nil, err
	}
	if err := savePosition(tx, pos); err != nil {
		return nil, nil, err
	}
	return minted, pos, nil
}

// Withdraw redeems an exact asset amount, burning the covering shares.
func (s *Service) Withdraw(poolID, lender string, assets *big.Int) (*WithdrawResponse, error) {
	if assets == nil || assets.Sign() <= 0 {
		return nil, types.ErrInvalidAmount
	}
	return s.unwind(poolID, lender, func(p *types.Pool) (shares, payout *big.Int) {
		return SharesForWithdraw(assets, p.TotalShares.Int(), s.totalAssets(p)), new(big.Int).Set(assets)
	})
}

// Redeem burns an exact share amount, paying out the floored asset value.
func (s *Service) Redeem(poolID, lender string, shares *big.Int) (*WithdrawResponse, error) {
	if shares == nil || shares.Sign() <= 0 {
		return nil, types.ErrInvalidAmount
	}
	return s.unwind(poolID, lender, func(p *types.Pool) (burn, payout *big.Int) {
		return new(big.Int).Set(shares), ConvertToAssets(shares, p.TotalShares.Int(), s.totalAssets(p))
	})
}

// unwind is the shared withdraw/redeem path: vesting and liquidity guards,
// rate-vote removal proportional to shares burned, then the burn itself.
func (s *Service) unwind(poolID, lender string, compute func(p *types.Pool) (shares, payout *big.Int)) (*WithdrawResponse, error) {
	logger := log.With().
		Str("pool_id", poolID).
		Str("lender", lender).
		Str("service", "pool").
		Logger()

	var (
		p      *types.Pool
		pos    *types.LenderPosition
		burn   *big.Int
		payout *big.Int
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = findPool(tx, poolID)
		if err != nil {
			return err
		}
		pos, err = findPosition(tx, poolID, lender)
		if err != nil {
			return err
		}
		if pos == nil || pos.Shares.Sign() == 0 {
			return types.ErrInsufficientShares
		}
		if s.nowFunc().Before(pos.VestingUnlockTime) {
			return types.ErrNotVested
		}

		burn, payout = compute(p)
		if burn.Sign() <= 0 || payout.Sign() <= 0 {
			return types.ErrInvalidAmount
		}
		if burn.Cmp(pos.Shares.Int()) > 0 {
			return types.ErrInsufficientShares
		}
		// Liquidity constraint, distinct from vesting: the pool cannot pay
		// out assets currently lent as loan principal.
		if payout.Cmp(p.IdleAssets.Int()) > 0 {
			return types.ErrInsufficientLiquidity
		}

		removedWeight, removedPrincipal := RemoveContribution(
			pos.RateWeight.Int(), pos.PrincipalDeposited.Int(), burn, pos.Shares.Int())
		pos.RateWeight = pos.RateWeight.Sub(removedWeight)
		pos.PrincipalDeposited = pos.PrincipalDeposited.Sub(removedPrincipal)

		weight := p.TotalRateWeight.Sub(removedWeight)
		principal := p.TotalPrincipalDeposited.Sub(removedPrincipal)
		if weight.Sign() < 0 || principal.Sign() < 0 {
			weight = types.BigIntFromInt64(0)
			principal = types.BigIntFromInt64(0)
		}
		p.TotalRateWeight = weight
		p.TotalPrincipalDeposited = principal
		p.DailyInterestRateBps = AggregateRateBps(weight.Int(), principal.Int())

		pos.Shares = pos.Shares.Sub(burn)
		p.TotalShares = p.TotalShares.Sub(burn)
		p.IdleAssets = p.IdleAssets.Sub(payout)

		if err := savePool(tx, p); err != nil {
			return err
		}
		return savePosition(tx, pos)
	})
	if err != nil {
		logger.Error().Err(err).Msg("withdrawal failed")
		return nil, err
	}

	logger.Info().
		Str("shares_burned", burn.String()).
		Str("assets_returned", payout.String()).
		Uint64("aggregate_rate_bps", p.DailyInterestRateBps).
		Msg("withdrawal completed")

	return &WithdrawResponse{
		PoolID:               p.PoolID,
		LenderAddress:        lender,
		SharesBurned:         types.NewBigInt(burn),
		AssetsReturned:       types.NewBigInt(payout),
		RemainingShares:      pos.Shares,
		DailyInterestRateBps: p.DailyInterestRateBps,
		Timestamp:            s.nowFunc(),
	}, nil
}

// PreviewDeposit returns the shares a deposit of assets would mint now.
func (s *Service) PreviewDeposit(poolID string, assets *big.Int) (*big.Int, error) {
	p, err := s.db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	return ConvertToShares(assets, p.TotalShares.Int(), s.totalAssets(p)), nil
}

// PreviewRedeem returns the assets a redemption of shares would pay out now.
func (s *Service) PreviewRedeem(poolID string, shares *big.Int) (*big.Int, error) {
	p, err := s.db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	return ConvertToAssets(shares, p.TotalShares.Int(), s.totalAssets(p)), nil
}

// PreviewWithdraw returns the shares a withdrawal of assets would burn now.
func (s *Service) PreviewWithdraw(poolID string, assets *big.Int) (*big.Int, error) {
	p, err := s.db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	return SharesForWithdraw(assets, p.TotalShares.Int(), s.totalAssets(p)), nil
}

// MaxWithdrawAvailable is the lender's redeemable asset value capped by the
// pool's idle liquidity.
func (s *Service) MaxWithdrawAvailable(poolID, lender string) (*big.Int, error) {
	p, err := s.db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	pos, err := s.db.GetPosition(poolID, lender)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return new(big.Int), nil
	}
	value := ConvertToAssets(pos.Shares.Int(), p.TotalShares.Int(), s.totalAssets(p))
	return minBig(value, p.IdleAssets.Int()), nil
}

// GetPool returns the public pool state.
func (s *Service) GetPool(poolID string) (*types.PoolResponse, error) {
	p, err := s.db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	return s.poolResponse(p), nil
}

// GetPosition returns a lender's vault position.
func (s *Service) GetPosition(poolID, lender string) (*types.PositionResponse, error) {
	p, err := s.db.GetPool(poolID)
	if err != nil {
		return nil, err
	}
	pos, err := s.db.GetPosition(poolID, lender)
	if err != nil {
		return nil, err
	}
	resp := &types.PositionResponse{
		PoolID:        poolID,
		LenderAddress: lender,
		Timestamp:     s.nowFunc(),
	}
	if pos == nil {
		return resp, nil
	}
	value := ConvertToAssets(pos.Shares.Int(), p.TotalShares.Int(), s.totalAssets(p))
	resp.Shares = pos.Shares
	resp.AssetValue = types.NewBigInt(value)
	resp.MaxWithdrawAvailable = types.NewBigInt(minBig(value, p.IdleAssets.Int()))
	resp.VestingUnlockTime = pos.VestingUnlockTime
	return resp, nil
}

// ReservePrincipal moves principal out of idle liquidity into a loan and
// books the full expected repayment as committed assets. Called inside the
// loan origination transaction.
func (s *Service) ReservePrincipal(tx *gorm.DB, poolID string, principal, totalOwed *big.Int) (*types.Pool, error) {
	p, err := findPool(tx, poolID)
	if err != nil {
		return nil, err
	}
	if principal.Cmp(p.IdleAssets.Int()) > 0 {
		return nil, types.ErrInsufficientLiquidity
	}
	p.IdleAssets = p.IdleAssets.Sub(principal)
	p.CommittedAssets = p.CommittedAssets.Add(totalOwed)
	if err := savePool(tx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreditRepayment books an installment payment: value moves from committed
// back to idle, and the protocol fee share of the interest portion is minted
// to the fee collector before anything else reads the share price.
func (s *Service) CreditRepayment(tx *gorm.DB, poolID string, payment, interestPortion *big.Int) error {
	p, err := findPool(tx, poolID)
	if err != nil {
		return err
	}

	feeAssets := new(big.Int).Mul(interestPortion, new(big.Int).SetUint64(p.ProtocolFeeBps))
	feeAssets.Quo(feeAssets, big.NewInt(BpsDenominator))
	if feeAssets.Sign() > 0 && p.FeeCollector != "" {
		feeShares := ConvertToShares(feeAssets, p.TotalShares.Int(), s.totalAssets(p))
		if feeShares.Sign() > 0 {
			collector, err := ensurePosition(tx, poolID, p.FeeCollector)
			if err != nil {
				return err
			}
			collector.Shares = collector.Shares.Add(feeShares)
			p.TotalShares = p.TotalShares.Add(feeShares)
			if err := savePosition(tx, collector); err != nil {
				return err
			}
			log.Debug().
				Str("pool_id", poolID).
				Str("fee_assets", feeAssets.String()).
				Str("fee_shares", feeShares.String()).
				Msg("protocol fee shares minted")
		}
	}

	p.IdleAssets = p.IdleAssets.Add(payment)
	committed := p.CommittedAssets.Sub(payment)
	if committed.Sign() < 0 {
		committed = types.BigIntFromInt64(0)
	}
	p.CommittedAssets = committed
	return savePool(tx, p)
}

// ApplyLiquidationOutcome reconciles auction proceeds against the amount
// owed: committed assets drop by the owed amount while idle assets rise by
// the proceeds, so the delta is the gain or loss socialized across shares.
func (s *Service) ApplyLiquidationOutcome(tx *gorm.DB, poolID string, proceeds, amountOwed *big.Int) error {
	p, err := findPool(tx, poolID)
	if err != nil {
		return err
	}
	committed := p.CommittedAssets.Sub(amountOwed)
	if committed.Sign() < 0 {
		committed = types.BigIntFromInt64(0)
	}
	p.CommittedAssets = committed
	if proceeds.Sign() > 0 {
		p.IdleAssets = p.IdleAssets.Add(proceeds)
	}

	delta := new(big.Int).Sub(proceeds, amountOwed)
	log.Info().
		Str("pool_id", poolID).
		Str("proceeds", proceeds.String()).
		Str("amount_owed", amountOwed.String()).
		Str("delta", delta.String()).
		Msg("liquidation outcome applied to vault")

	return savePool(tx, p)
}

func (s *Service) totalAssets(p *types.Pool) *big.Int {
	return new(big.Int).Add(p.IdleAssets.Int(), p.CommittedAssets.Int())
}

func (s *Service) poolResponse(p *types.Pool) *types.PoolResponse {
	return &types.PoolResponse{
		PoolID:               p.PoolID,
		CollectionAddress:    p.CollectionAddress,
		LoanToValueBps:       p.LoanToValueBps,
		DailyInterestRateBps: p.DailyInterestRateBps,
		MaxDailyRateBps:      p.MaxDailyRateBps,
		TotalShares:          p.TotalShares,
		TotalAssets:          types.NewBigInt(s.totalAssets(p)),
		IdleAssets:           p.IdleAssets,
		CommittedAssets:      p.CommittedAssets,
		Timestamp:            s.nowFunc(),
	}
}

// GinHandlers contains HTTP handlers for pool endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreatePoolHandler handles POST requests to provision pools.
// Requires internal authentication.
func (h *GinHandlers) CreatePoolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreatePoolRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		resp, err := h.service.Create(req)
		response.Handle(c, resp, err)
	}
}

// DepositHandler handles POST requests implementing depositAndVote.
// URL parameter: pool_id
func (h *GinHandlers) DepositHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		lender := req.OnBehalfOf
		if lender == "" {
			lender = c.GetString("clientID")
		}
		if lender == "" {
			response.Unauthorized(c, "Missing lender identity")
			return
		}
		resp, err := h.service.Deposit(c.Param("pool_id"), lender, req.Amount.Int(), req.DailyInterestRateBps)
		response.Handle(c, resp, err)
	}
}

func (h *GinHandlers) WithdrawHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		lender := c.GetString("clientID")
		if lender == "" {
			response.Unauthorized(c, "Missing lender identity")
			return
		}
		resp, err := h.service.Withdraw(c.Param("pool_id"), lender, req.Assets.Int())
		response.Handle(c, resp, err)
	}
}

func (h *GinHandlers) RedeemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RedeemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		lender := c.GetString("clientID")
		if lender == "" {
			response.Unauthorized(c, "Missing lender identity")
			return
		}
		resp, err := h.service.Redeem(c.Param("pool_id"), lender, req.Shares.Int())
		response.Handle(c, resp, err)
	}
}

func (h *GinHandlers) GetPoolHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.service.GetPool(c.Param("pool_id"))
		response.Handle(c, resp, err)
	}
}

// GetPositionHandler returns the caller's lender position.
func (h *GinHandlers) GetPositionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lender := c.Query("address")
		if lender == "" {
			lender = c.GetString("clientID")
		}
		if lender == "" {
			response.Unauthorized(c, "Missing lender identity")
			return
		}
		resp, err := h.service.GetPosition(c.Param("pool_id"), lender)
		response.Handle(c, resp, err)
	}
}
