package settlement

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ksred/nftlend-api/internal/types"
)

// Manager executes the actual NFT purchase against an external marketplace.
// A failed purchase must fail the whole loan origination, so implementations
// return an error rather than a partial result.
type Manager interface {
	// Address identifies the manager; loan requests name the manager they
	// expect, and the registry rejects unknown ones.
	Address() string
	// ExecutePurchase spends valueToSend to buy the token using the
	// marketplace-specific order encoded in extraData.
	ExecutePurchase(collection, tokenID string, extraData []byte, valueToSend *big.Int) error
}

// Registry is the allow-list of settlement managers a pool may route
// purchases through. Mirrors the NFT filter's supported-manager set.
type Registry struct {
	mu       sync.RWMutex
	managers map[string]Manager
}

func NewRegistry(managers ...Manager) *Registry {
	r := &Registry{managers: make(map[string]Manager)}
	for _, m := range managers {
		r.Register(m)
	}
	return r
}

func (r *Registry) Register(m Manager) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.managers[strings.ToLower(m.Address())] = m
}

// Get returns the manager for the given address or ErrUnsupportedManager.
func (r *Registry) Get(address string) (Manager, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.managers[strings.ToLower(address)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedManager, address)
	}
	return m, nil
}

// SeaportManager is a seaport-style settlement manager. Purchases are
// recorded in memory; the real marketplace call happens off-process.
type SeaportManager struct {
	address string

	mu        sync.Mutex
	purchases map[string]*big.Int // collection:tokenID -> value spent
	failNext  bool
}

func NewSeaportManager(address string) *SeaportManager {
	return &SeaportManager{
		address:   address,
		purchases: make(map[string]*big.Int),
	}
}

func (m *SeaportManager) Address() string { return m.address }

// FailNext makes the next purchase fail, for exercising rollback paths.
func (m *SeaportManager) FailNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = true
}

func (m *SeaportManager) ExecutePurchase(collection, tokenID string, extraData []byte, valueToSend *big.Int) error {
	logger := log.With().
		Str("settlement_manager", m.address).
		Str("collection", collection).
		Str("token_id", tokenID).
		Str("value", valueToSend.String()).
		Logger()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failNext {
		m.failNext = false
		logger.Warn().Msg("marketplace rejected the purchase")
		return types.ErrSettlementFailed
	}
	if valueToSend == nil || valueToSend.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive purchase value", types.ErrSettlementFailed)
	}
	if len(extraData) == 0 {
		return fmt.Errorf("%w: missing order data", types.ErrSettlementFailed)
	}

	key := strings.ToLower(collection) + ":" + tokenID
	m.purchases[key] = new(big.Int).Set(valueToSend)

	logger.Info().Msg("purchase executed")
	return nil
}

// Purchased reports whether the manager has executed a purchase for the token
// and the value spent.
func (m *SeaportManager) Purchased(collection, tokenID string) (*big.Int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.purchases[strings.ToLower(collection)+":"+tokenID]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}
