package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/nftlend-api/internal/auth"
	"github.com/ksred/nftlend-api/internal/database"
	"github.com/ksred/nftlend-api/internal/liquidation"
	"github.com/ksred/nftlend-api/internal/loans"
	"github.com/ksred/nftlend-api/internal/oracle"
	"github.com/ksred/nftlend-api/internal/pool"
	"github.com/ksred/nftlend-api/internal/settlement"
	"github.com/ksred/nftlend-api/internal/types"
	"github.com/ksred/nftlend-api/pkg/middleware"
)

const (
	minLoans      = 8
	maxLoans      = 20
	numLenders    = 5
	serverAddress = "http://localhost:8080"

	// timeScale compresses protocol time so vesting locks, installment
	// deadlines and auction windows play out within the simulation run:
	// one real second is two simulated days.
	timeScale = 172_800

	seaportAddress = "0x00000000000000ADc04C56Bf30aC9d3c0aAF14dC"
	collection     = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"
	feeCollector   = "0xFee0000000000000000000000000000000000001"
)

// simStart anchors the accelerated clock shared by the embedded server and
// the oracle quotes the simulation signs.
var simStart = time.Now()

func simNow() time.Time {
	elapsed := time.Since(simStart)
	return simStart.Add(time.Duration(int64(elapsed) * timeScale))
}

// waitSim sleeps for the real-time equivalent of a simulated duration.
func waitSim(d time.Duration) {
	time.Sleep(d/timeScale + 50*time.Millisecond)
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the lending API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	signer    *ecdsa.PrivateKey
	nonce     uint64
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient(signer *ecdsa.PrivateKey) (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		signer:  signer,
		stats: map[string]*routeStats{
			"auth":        {name: "Authentication"},
			"create_pool": {name: "Create Pool"},
			"deposit":     {name: "Deposit"},
			"buy":         {name: "Buy NFT"},
			"get_loan":    {name: "Get Loan"},
			"refund":      {name: "Refund"},
			"liquidate":   {name: "Liquidate"},
			"auction":     {name: "Auction Buy"},
			"withdraw":    {name: "Withdraw"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// call performs an authenticated JSON request and decodes the standard
// response envelope into out. The stats key is timed and failures counted.
func (sc *simulationClient) call(statsKey, method, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statsKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statsKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		sc.stats[statsKey].failures++
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statsKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

// createPool provisions the simulation's lending pool
func (sc *simulationClient) createPool(rateBps uint64) (*types.PoolResponse, error) {
	var out types.PoolResponse
	err := sc.call("create_pool", "POST", "/api/v1/internal/pools", pool.CreatePoolRequest{
		CollectionAddress:    collection,
		LoanToValueBps:       3_500,
		MaxDailyRateBps:      100,
		FeeCollector:         feeCollector,
		Creator:              auth.TestAddress,
		InitialDeposit:       types.NewBigInt(ether(100)),
		DailyInterestRateBps: rateBps,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// deposit adds lender liquidity with a rate vote
func (sc *simulationClient) deposit(poolID, lender string, amount *big.Int, rateBps uint64) (*pool.DepositResponse, error) {
	var out pool.DepositResponse
	err := sc.call("deposit", "POST", fmt.Sprintf("/api/v1/pools/%s/deposit", poolID), pool.DepositRequest{
		OnBehalfOf:           lender,
		Amount:               types.NewBigInt(amount),
		DailyInterestRateBps: rateBps,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// buyNFT originates a loan backed by a freshly signed oracle quote
func (sc *simulationClient) buyNFT(poolID, tokenID string, price, down *big.Int, durationSeconds int64) (*types.LoanResponse, error) {
	sc.nonce++
	token, _ := new(big.Int).SetString(tokenID, 10)
	terms := oracle.LoanTerms{
		ChainID:       1,
		Collection:    common.HexToAddress(collection),
		TokenID:       token,
		Price:         price,
		FloorPrice:    price,
		PriceWithFees: price,
		Borrower:      common.HexToAddress(auth.TestAddress),
		Nonce:         sc.nonce,
		Timestamp:     time.Unix(simNow().Unix(), 0), // wire precision is seconds
		ExtraData:     hexutil.MustDecode("0xdeadbeef"),
	}
	sig, err := crypto.Sign(terms.Digest(), sc.signer)
	if err != nil {
		return nil, err
	}

	var out types.LoanResponse
	err = sc.call("buy", "POST", "/api/v1/loans/buy", loans.BuyNFTRequest{
		PoolID:            poolID,
		CollectionAddress: collection,
		TokenID:           tokenID,
		NFTPrice:          types.NewBigInt(price),
		FloorPrice:        types.NewBigInt(price),
		PriceWithFees:     types.NewBigInt(price),
		DownPayment:       types.NewBigInt(down),
		DurationSeconds:   durationSeconds,
		SettlementManager: seaportAddress,
		ExtraData:         "0xdeadbeef",
		ChainID:           1,
		OracleNonce:       sc.nonce,
		OracleTimestamp:   terms.Timestamp.Unix(),
		OracleSignature:   hexutil.Encode(sig),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (sc *simulationClient) getLoan(loanID string) (*types.LoanResponse, error) {
	var out types.LoanResponse
	if err := sc.call("get_loan", "GET", "/api/v1/loans/"+loanID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// refund pays one installment on a loan
func (sc *simulationClient) refund(loanID string, amount *big.Int) (*loans.RefundResponse, error) {
	var out loans.RefundResponse
	err := sc.call("refund", "POST", fmt.Sprintf("/api/v1/loans/%s/refund", loanID), loans.RefundRequest{
		Amount: types.NewBigInt(amount),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// liquidate sends a late loan to auction via the internal endpoint
func (sc *simulationClient) liquidate(loanID string) (*types.LoanResponse, error) {
	var out types.LoanResponse
	if err := sc.call("liquidate", "POST", "/api/v1/internal/liquidation/"+loanID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (sc *simulationClient) listAuctions() ([]liquidation.LiquidationResponse, error) {
	var out []liquidation.LiquidationResponse
	if err := sc.call("auction", "GET", "/api/v1/liquidations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// buyAuction purchases auctioned collateral at the quoted current price
func (sc *simulationClient) buyAuction(liquidationID string, payment *big.Int) (*liquidation.BuyResponse, error) {
	var out liquidation.BuyResponse
	err := sc.call("auction", "POST", fmt.Sprintf("/api/v1/liquidations/%s/buy", liquidationID), liquidation.BuyRequest{
		Payment: types.NewBigInt(payment),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// withdraw redeems lender assets after vesting
func (sc *simulationClient) withdraw(poolID string, assets *big.Int) (*pool.WithdrawResponse, error) {
	var out pool.WithdrawResponse
	err := sc.call("withdraw", "POST", fmt.Sprintf("/api/v1/pools/%s/withdraw", poolID), pool.WithdrawRequest{
		Assets: types.NewBigInt(assets),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the lending simulation: pool funding, loan origination, a mix
// of full repayments and defaults, Dutch auctions, and lender exits.
func main() {
	signer, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate oracle signer")
	}

	// Start the server in a goroutine
	go func() {
		if err := startServer(signer); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient(signer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	stats := struct {
		Deposits       int
		LoansOpened    int
		LoansRepaid    int
		LoansDefaulted int
		AuctionsSold   int
		Withdrawals    int
		FailedCalls    int
		StartTime      time.Time
	}{StartTime: time.Now()}

	// Create the pool with the creator's anchor deposit
	p, err := simClient.createPool(40)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pool")
	}
	log.Info().
		Str("pool_id", p.PoolID).
		Uint64("daily_interest_rate_bps", p.DailyInterestRateBps).
		Msg("Pool created")

	// Lender deposits with spread-out rate votes
	for i := 0; i < numLenders; i++ {
		lender := fmt.Sprintf("0x%040x", 0x1000+i)
		amount := ether(int64(rand.Intn(80) + 20))
		rateBps := uint64(rand.Intn(60) + 20)

		resp, err := simClient.deposit(p.PoolID, lender, amount, rateBps)
		if err != nil {
			log.Error().Err(err).Str("lender", lender).Msg("Failed to deposit")
			stats.FailedCalls++
			continue
		}
		stats.Deposits++
		log.Info().
			Str("lender", lender).
			Str("amount", amount.String()).
			Uint64("rate_bps", rateBps).
			Uint64("aggregate_rate_bps", resp.DailyInterestRateBps).
			Msg("Deposit accepted")
	}

	// Originate loans
	targetLoans := rand.Intn(maxLoans-minLoans) + minLoans
	log.Info().Int("target_loans", targetLoans).Msg("Starting loan origination")

	var loanIDs []string
	for i := 0; i < targetLoans; i++ {
		price := ether(int64(rand.Intn(15) + 5))
		down := new(big.Int).Div(new(big.Int).Mul(price, big.NewInt(40)), big.NewInt(100))
		durationDays := int64(rand.Intn(60) + 30)

		loan, err := simClient.buyNFT(p.PoolID, fmt.Sprintf("%d", 1000+i), price, down, durationDays*86_400)
		if err != nil {
			log.Error().Err(err).Int("token", 1000+i).Msg("Failed to originate loan")
			stats.FailedCalls++
			continue
		}
		loanIDs = append(loanIDs, loan.LoanID)
		stats.LoansOpened++
		log.Info().
			Str("loan_id", loan.LoanID).
			Str("principal", loan.Principal.String()).
			Str("amount_owed", loan.AmountOwedWithInterest.String()).
			Int("installments", loan.Installments).
			Msg("Loan originated")
	}

	// Repay roughly 60% of loans in full; leave the rest to default
	var defaulted []string
	for i, loanID := range loanIDs {
		if i%5 >= 3 {
			defaulted = append(defaulted, loanID)
			continue
		}
		if repayLoan(simClient, loanID) {
			stats.LoansRepaid++
		} else {
			stats.FailedCalls++
		}
	}

	// Let the defaulted loans go past their first installment deadline
	log.Info().Int("defaulting", len(defaulted)).Msg("Waiting for installment deadlines to lapse")
	waitSim(31 * 24 * time.Hour)

	for _, loanID := range defaulted {
		if _, err := simClient.liquidate(loanID); err != nil {
			log.Error().Err(err).Str("loan_id", loanID).Msg("Failed to liquidate")
			stats.FailedCalls++
			continue
		}
		stats.LoansDefaulted++
	}

	// Let auction prices decay, then buy everything at the current price
	waitSim(2 * 24 * time.Hour)
	auctions, err := simClient.listAuctions()
	if err != nil {
		log.Error().Err(err).Msg("Failed to list auctions")
	}
	for _, a := range auctions {
		// Pad the payment slightly: the price keeps decaying, so the quote
		// is an upper bound by the time the buy lands.
		payment := a.CurrentPrice.Int()
		if payment.Sign() == 0 {
			continue
		}
		resp, err := simClient.buyAuction(a.LiquidationID, payment)
		if err != nil {
			log.Error().Err(err).Str("liquidation_id", a.LiquidationID).Msg("Failed to buy at auction")
			stats.FailedCalls++
			continue
		}
		stats.AuctionsSold++
		log.Info().
			Str("liquidation_id", resp.LiquidationID).
			Str("sale_price", resp.SalePrice.String()).
			Msg("Collateral bought at auction")
	}

	// Lender exit: the anchor deposit vested long ago on the sim clock
	if _, err := simClient.withdraw(p.PoolID, ether(10)); err != nil {
		log.Error().Err(err).Msg("Failed to withdraw")
		stats.FailedCalls++
	} else {
		stats.Withdrawals++
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 LENDING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Lifecycle Statistics
----------------------
Lender Deposits:  %d
Loans Opened:     %d
Loans Repaid:     %d
Loans Defaulted:  %d
Auctions Sold:    %d
Withdrawals:      %d
Failed Calls:     %d
Duration:         %v
Simulated Time:   %v
`, stats.Deposits, stats.LoansOpened, stats.LoansRepaid, stats.LoansDefaulted,
		stats.AuctionsSold, stats.Withdrawals, stats.FailedCalls,
		duration.Round(time.Millisecond),
		simNow().Sub(simStart).Round(time.Hour))

	fmt.Println("\n" + strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// repayLoan pays every installment until the loan closes
func repayLoan(simClient *simulationClient, loanID string) bool {
	for {
		loan, err := simClient.getLoan(loanID)
		if err != nil {
			log.Error().Err(err).Str("loan_id", loanID).Msg("Failed to fetch loan")
			return false
		}
		if loan.Status == types.LoanStatusClosedRepaid {
			log.Info().Str("loan_id", loanID).Msg("Loan fully repaid")
			return true
		}

		// The final installment settles the remaining balance exactly.
		amount := loan.InstallmentAmount.Int()
		if loan.InstallmentsPaid == loan.Installments-1 {
			amount = loan.AmountOwedWithInterest.Int()
		}
		if _, err := simClient.refund(loanID, amount); err != nil {
			log.Error().Err(err).Str("loan_id", loanID).Msg("Failed to pay installment")
			return false
		}
	}
}

// startServer initializes and starts the lending API server with the
// simulation's accelerated clock and trusted oracle signer
func startServer(signer *ecdsa.PrivateKey) error {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize services
	authService := auth.NewService("nftlend-secret-key")
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret, auth.TestAddress)

	verifier := oracle.NewVerifier(crypto.PubkeyToAddress(signer.PublicKey))
	verifier.SetNowFunc(simNow)
	registry := settlement.NewRegistry(settlement.NewSeaportManager(seaportAddress))

	poolService := pool.NewService(db)
	poolService.SetNowFunc(simNow)

	loanService := loans.NewService(db, poolService, verifier, registry)
	loanService.SetNowFunc(simNow)

	liquidationService := liquidation.NewService(db, loanService)
	liquidationService.SetNowFunc(simNow)
	loanService.SetLiquidator(liquidationService)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	poolHandlers := pool.NewGinHandlers(poolService)
	loanHandlers := loans.NewGinHandlers(loanService)
	liquidationHandlers := liquidation.NewGinHandlers(liquidationService)

	// Setup routes
	setupRoutes(router, authHandlers, poolHandlers, loanHandlers, liquidationHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	poolHandlers *pool.GinHandlers,
	loanHandlers *loans.GinHandlers,
	liquidationHandlers *liquidation.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Pool routes
		pools := v1.Group("/pools")
		pools.Use(middleware.JWTAuth())
		{
			pools.GET("/:pool_id", poolHandlers.GetPoolHandler())
			pools.GET("/:pool_id/position", poolHandlers.GetPositionHandler())
			pools.POST("/:pool_id/deposit", poolHandlers.DepositHandler())
			pools.POST("/:pool_id/withdraw", poolHandlers.WithdrawHandler())
			pools.POST("/:pool_id/redeem", poolHandlers.RedeemHandler())
			pools.POST("/:pool_id/quote", loanHandlers.QuoteHandler())
		}

		// Loan routes
		loanRoutes := v1.Group("/loans")
		loanRoutes.Use(middleware.JWTAuth())
		{
			loanRoutes.POST("/buy", loanHandlers.BuyNFTHandler())
			loanRoutes.POST("/:loan_id/refund", loanHandlers.RefundHandler())
			loanRoutes.GET("/:loan_id", loanHandlers.GetLoanHandler())
			loanRoutes.GET("", loanHandlers.ListLoansHandler())
		}

		// Liquidation routes
		liquidations := v1.Group("/liquidations")
		liquidations.Use(middleware.JWTAuth())
		{
			liquidations.GET("", liquidationHandlers.ListActiveHandler())
			liquidations.GET("/:liquidation_id", liquidationHandlers.GetLiquidationHandler())
			liquidations.POST("/:liquidation_id/buy", liquidationHandlers.BuyHandler())
		}

		// Internal routes
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/pools", poolHandlers.CreatePoolHandler())
			internal.POST("/liquidation/:loan_id", loanHandlers.LiquidateHandler())
		}
	}
}
