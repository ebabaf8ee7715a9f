// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package node

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/core/forkdb"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	conf := DefaultConfig
	conf.HTTPPort = 0
	conf.Accounts = 2
	return &conf
}

func startNode(t *testing.T, conf *Config) *Node {
	t.Helper()
	n, err := New(context.Background(), conf)
	require.NoError(t, err)
	require.NoError(t, n.Start())
	t.Cleanup(func() { n.Close() })
	return n
}

func TestNodeLocalChain(t *testing.T) {
	n := startNode(t, testConfig(t))
	client := ethclient.NewClient(n.Attach())
	defer client.Close()
	ctx := context.Background()

	chainID, err := client.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(DefaultChainID), chainID.Uint64())

	accounts := n.Accounts()
	require.Len(t, accounts, 2)
	balance, err := client.BalanceAt(ctx, accounts[0], nil)
	require.NoError(t, err)
	want := new(big.Int).Mul(big.NewInt(DefaultBalance), big.NewInt(params.Ether))
	assert.Equal(t, 0, want.Cmp(balance))

	var version string
	require.NoError(t, n.Attach().Call(&version, "web3_clientVersion"))
	assert.True(t, strings.HasPrefix(version, "Forknode/"), version)

	var hash common.Hash
	to := common.HexToAddress("0xbeef")
	require.NoError(t, n.Attach().Call(&hash, "eth_sendTransaction", map[string]interface{}{
		"from":  accounts[0],
		"to":    to,
		"value": (*hexutil.Big)(big.NewInt(5)),
	}))
	number, err := client.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), number)

	receipt, err := client.TransactionReceipt(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	got, err := client.BalanceAt(ctx, to, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Int64())
}

func TestNodeHTTPAndWebSocket(t *testing.T) {
	n := startNode(t, testConfig(t))
	endpoint := n.HTTPEndpoint()
	require.NotEmpty(t, endpoint)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	httpClient, err := rpc.DialHTTP("http://" + endpoint)
	require.NoError(t, err)
	defer httpClient.Close()

	wsClient, err := rpc.DialWebsocket(ctx, "ws://"+endpoint, "")
	require.NoError(t, err)
	defer wsClient.Close()

	heads := make(chan map[string]interface{}, 1)
	sub, err := wsClient.EthSubscribe(ctx, heads, "newHeads")
	require.NoError(t, err)
	defer sub.Unsubscribe()

	var result string
	require.NoError(t, httpClient.CallContext(ctx, &result, "evm_mine"))

	select {
	case head := <-heads:
		assert.Equal(t, "0x1", head["number"])
	case err := <-sub.Err():
		t.Fatalf("subscription failed: %v", err)
	case <-ctx.Done():
		t.Fatal("no head received")
	}

	// CORS preflight
	req, err := http.NewRequest(http.MethodOptions, "http://"+endpoint, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestNodeLifecycle(t *testing.T) {
	n, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, n.Start())
	assert.ErrorIs(t, n.Start(), ErrNodeRunning)
	require.NoError(t, n.Close())
	assert.Empty(t, n.HTTPEndpoint())
	assert.ErrorIs(t, n.Close(), ErrNodeStopped)
	assert.ErrorIs(t, n.Start(), ErrNodeStopped)
}

func TestNodeUsedDataDir(t *testing.T) {
	conf := testConfig(t)
	conf.DataDir = t.TempDir()

	first, err := New(context.Background(), conf)
	require.NoError(t, err)
	defer first.Close()

	_, err = New(context.Background(), conf)
	assert.ErrorIs(t, err, ErrDatadirUsed)
}

func TestGenesisAllocFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"0x000000000000000000000000000000000000beef": {"balance": "0x2a", "code": "0x60"}}`), 0600))
	conf := testConfig(t)
	conf.Genesis = file
	n := startNode(t, conf)

	client := ethclient.NewClient(n.Attach())
	defer client.Close()
	addr := common.HexToAddress("0xbeef")
	balance, err := client.BalanceAt(context.Background(), addr, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance.Int64())
	code, err := client.CodeAt(context.Background(), addr, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60}, code)
}

func TestDevKeysAreStable(t *testing.T) {
	a, err := newDevAccounts(3)
	require.NoError(t, err)
	b, err := newDevAccounts(3)
	require.NoError(t, err)
	assert.Equal(t, a.addresses(), b.addresses())
	assert.NotEqual(t, a.addrs[0], a.addrs[1])
}

// fakeRemote is an in-process remote chain at head 100 with chain id 5.
type fakeRemote struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func (r *fakeRemote) header(number uint64) *types.Header {
	return &types.Header{
		Number:     new(big.Int).SetUint64(number),
		Time:       10_000 + number,
		GasLimit:   30_000_000,
		BaseFee:    big.NewInt(7),
		Difficulty: new(big.Int),
	}
}

func (r *fakeRemote) ChainID(ctx context.Context) (*big.Int, error) { return big.NewInt(5), nil }

func (r *fakeRemote) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if number == nil {
		return r.header(100), nil
	}
	if number.Uint64() > 100 {
		return nil, ethereum.NotFound
	}
	return r.header(number.Uint64()), nil
}

func (r *fakeRemote) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	header, err := r.HeaderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return types.NewBlockWithHeader(header), nil
}

func (r *fakeRemote) BalanceAt(ctx context.Context, addr common.Address, number *big.Int) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.balances[addr]; ok {
		return new(big.Int).Set(v), nil
	}
	return new(big.Int), nil
}

func (r *fakeRemote) NonceAt(ctx context.Context, addr common.Address, number *big.Int) (uint64, error) {
	return 0, nil
}

func (r *fakeRemote) CodeAt(ctx context.Context, addr common.Address, number *big.Int) ([]byte, error) {
	return nil, nil
}

func (r *fakeRemote) StorageAt(ctx context.Context, addr common.Address, key common.Hash, number *big.Int) ([]byte, error) {
	return common.Hash{}.Bytes(), nil
}

func (r *fakeRemote) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	return nil, false, ethereum.NotFound
}

func (r *fakeRemote) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func TestNodeForkLaunch(t *testing.T) {
	whale := common.HexToAddress("0x1111")
	remote := &fakeRemote{balances: map[common.Address]*big.Int{whale: big.NewInt(1_000_000)}}
	forks := forkdb.NewMultiForkWithDialer(func(ctx context.Context, url string) (forkdb.Provider, error) {
		return remote, nil
	})
	block := uint64(90)
	conf := testConfig(t)
	conf.Fork = &forkdb.Config{URL: "http://remote", BlockNumber: &block, Retries: 1, NoRateLimit: true}

	n, err := newNode(context.Background(), conf, forks)
	require.NoError(t, err)
	defer n.Close()

	assert.Equal(t, int64(5), n.ChainConfig().ChainID.Int64())
	genesis := n.Chain().Genesis()
	assert.Equal(t, uint64(90), genesis.NumberU64())
	assert.Equal(t, uint64(10_090), genesis.Time())
	assert.Equal(t, int64(7), genesis.BaseFee().Int64())

	client := ethclient.NewClient(n.Attach())
	defer client.Close()
	balance, err := client.BalanceAt(context.Background(), whale, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance.Int64())

	// Development accounts are funded on the fork.
	balance, err = client.BalanceAt(context.Background(), n.Accounts()[0], nil)
	require.NoError(t, err)
	assert.Equal(t, 1, balance.Sign())

	var infos []map[string]interface{}
	require.NoError(t, n.Attach().Call(&infos, "anvil_forkInfo"))
	require.Len(t, infos, 1)
	assert.Equal(t, true, infos[0]["active"])
	assert.Equal(t, "0x5a", infos[0]["blockNumber"])
}
