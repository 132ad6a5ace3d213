package relaytest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/0xsequence/ethkit/go-ethereum"
	"github.com/0xsequence/ethkit/go-ethereum/common"
	"github.com/0xsequence/ethkit/go-ethereum/common/hexutil"
	"github.com/0xsequence/ethkit/go-ethereum/core/types"
	"github.com/0xsequence/ethrelay/contracts"
	"github.com/0xsequence/ethrelay/envelope"
)

// ErrReverted is returned by calls routed to Revert.
var ErrReverted = errors.New("execution reverted")

// CallHandler answers an eth_call routed to it.
type CallHandler func(msg ethereum.CallMsg) ([]byte, error)

type callKey struct {
	to       common.Address
	selector [4]byte
}

// FakeProvider is a scriptable in-memory ledger. eth_call requests are routed
// by target address and 4-byte selector to handlers registered with
// HandleCall; unrouted calls fail.
type FakeProvider struct {
	ChainIDValue *big.Int
	GasPrice     *big.Int

	// EstimateGasFn answers eth_estimateGas; nil estimates 21000.
	EstimateGasFn func(msg ethereum.CallMsg) (uint64, error)

	// Known transactions and receipts, keyed by hash.
	Transactions map[common.Hash]*types.Transaction
	Receipts     map[common.Hash]*types.Receipt

	// LookupErr fails both transaction lookups when set.
	LookupErr error

	mu       sync.Mutex
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	handlers map[callKey]CallHandler
	counts   map[string]int
	sent     []string
	calls    []ethereum.CallMsg
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		ChainIDValue: new(big.Int).Set(ChainID),
		GasPrice:     big.NewInt(60_000_000),
		Transactions: map[common.Hash]*types.Transaction{},
		Receipts:     map[common.Hash]*types.Receipt{},
		balances:     map[common.Address]*big.Int{},
		nonces:       map[common.Address]uint64{},
		handlers:     map[callKey]CallHandler{},
		counts:       map[string]int{},
	}
}

func (p *FakeProvider) SetBalance(account common.Address, balance *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[account] = balance
}

func (p *FakeProvider) SetNonce(account common.Address, nonce uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonces[account] = nonce
}

// HandleCall routes eth_call requests for contract.method at address to handler.
func (p *FakeProvider) HandleCall(address common.Address, contract, method string, handler CallHandler) {
	var key callKey
	key.to = address
	copy(key.selector[:], contracts.MethodID(contract, method))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[key] = handler
}

// Count returns how many times the named provider method was invoked.
func (p *FakeProvider) Count(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[method]
}

// Sent returns the raw transactions passed to SendRawTransaction.
func (p *FakeProvider) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

// CallsTo returns the eth_call messages sent to address.
func (p *FakeProvider) CallsTo(address common.Address) []ethereum.CallMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ethereum.CallMsg
	for _, msg := range p.calls {
		if msg.To != nil && *msg.To == address {
			out = append(out, msg)
		}
	}
	return out
}

func (p *FakeProvider) inc(method string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[method]++
}

func (p *FakeProvider) ChainID(ctx context.Context) (*big.Int, error) {
	p.inc("ChainID")
	return new(big.Int).Set(p.ChainIDValue), nil
}

func (p *FakeProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	p.inc("SuggestGasPrice")
	return new(big.Int).Set(p.GasPrice), nil
}

func (p *FakeProvider) BalanceAt(ctx context.Context, account common.Address, blockNum *big.Int) (*big.Int, error) {
	p.inc("BalanceAt")
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (p *FakeProvider) NonceAt(ctx context.Context, account common.Address, blockNum *big.Int) (uint64, error) {
	p.inc("NonceAt")
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nonces[account], nil
}

func (p *FakeProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	p.inc("EstimateGas")
	if p.EstimateGasFn != nil {
		return p.EstimateGasFn(msg)
	}
	return 21_000, nil
}

func (p *FakeProvider) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNum *big.Int) ([]byte, error) {
	p.inc("CallContract")
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("relaytest: malformed call")
	}

	var key callKey
	key.to = *msg.To
	copy(key.selector[:], msg.Data[:4])

	p.mu.Lock()
	p.calls = append(p.calls, msg)
	handler, ok := p.handlers[key]
	p.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("relaytest: no handler for call to %s selector %x", msg.To.Hex(), msg.Data[:4])
	}
	return handler(msg)
}

func (p *FakeProvider) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	p.inc("TransactionByHash")
	if p.LookupErr != nil {
		return nil, false, p.LookupErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tx, ok := p.Transactions[hash]; ok {
		return tx, true, nil
	}
	return nil, false, ethereum.NotFound
}

func (p *FakeProvider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	p.inc("TransactionReceipt")
	if p.LookupErr != nil {
		return nil, p.LookupErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.Receipts[txHash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (p *FakeProvider) SendRawTransaction(ctx context.Context, signedTxHex string) (common.Hash, error) {
	p.inc("SendRawTransaction")

	raw, err := hexutil.Decode(signedTxHex)
	if err != nil {
		return common.Hash{}, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, signedTxHex)
	p.Transactions[tx.Hash()] = tx
	return tx.Hash(), nil
}

// Canned call results.

func Revert() CallHandler {
	return func(ethereum.CallMsg) ([]byte, error) {
		return nil, ErrReverted
	}
}

func Return(contract, method string, values ...interface{}) CallHandler {
	return func(ethereum.CallMsg) ([]byte, error) {
		return PackOutputs(contract, method, values...)
	}
}

func ReturnRelayInfo(data envelope.RelayManagerData) CallHandler {
	return Return(contracts.RelayHub, "getRelayInfo", contracts.RelayManagerDataABI{
		Manager:         data.Manager,
		CurrentlyStaked: data.CurrentlyStaked,
		Registered:      data.Registered,
		Url:             data.URL,
	})
}

// PackOutputs ABI-encodes the return values of contract.method.
func PackOutputs(contract, method string, values ...interface{}) ([]byte, error) {
	artifact, ok := contracts.GetContractArtifact(contract)
	if !ok {
		return nil, fmt.Errorf("relaytest: unknown contract %s", contract)
	}
	m, ok := artifact.ABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("relaytest: unknown method %s.%s", contract, method)
	}
	return m.Outputs.Pack(values...)
}
