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

package rawdb

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sunyihoo/forknode/ethdb/memorydb"
)

func testBlock(t *testing.T, number int64) (*types.Block, types.Receipts) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := types.LatestSignerForChainID(big.NewInt(1))
	to := common.HexToAddress("0xbb")
	var (
		txs      types.Transactions
		receipts types.Receipts
	)
	for i := uint64(0); i < 2; i++ {
		tx, err := types.SignNewTx(key, signer, &types.LegacyTx{
			Nonce: i, To: &to, Value: big.NewInt(1), Gas: 21000, GasPrice: big.NewInt(1),
		})
		require.NoError(t, err)
		txs = append(txs, tx)
		receipts = append(receipts, &types.Receipt{
			Type:              tx.Type(),
			Status:            types.ReceiptStatusSuccessful,
			CumulativeGasUsed: 21000 * (i + 1),
			Logs:              []*types.Log{{Address: to, Topics: []common.Hash{{byte(i)}}}},
		})
	}
	header := &types.Header{
		Number:   big.NewInt(number),
		GasLimit: 30_000_000,
		GasUsed:  42000,
		Time:     1000,
		BaseFee:  big.NewInt(1),
	}
	block := types.NewBlock(header, &types.Body{Transactions: txs}, receipts, trie.NewStackTrie(nil))
	return block, receipts
}

func writeCanonical(db *memorydb.Database, block *types.Block, receipts types.Receipts) {
	WriteBlock(db, block)
	WriteReceipts(db, block.Hash(), block.NumberU64(), receipts)
	WriteCanonicalHash(db, block.Hash(), block.NumberU64())
	WriteTxLookupEntriesByBlock(db, block)
	WriteHeadHeaderHash(db, block.Hash())
}

func TestBlockStorage(t *testing.T) {
	db := memorydb.New()
	block, receipts := testBlock(t, 7)

	assert.Nil(t, ReadBlock(db, block.Hash(), 7))
	assert.Nil(t, ReadHeadBlock(db))

	writeCanonical(db, block, receipts)

	got := ReadBlock(db, block.Hash(), 7)
	require.NotNil(t, got)
	assert.Equal(t, block.Hash(), got.Hash())
	assert.Len(t, got.Transactions(), 2)

	number := ReadHeaderNumber(db, block.Hash())
	require.NotNil(t, number)
	assert.Equal(t, uint64(7), *number)
	assert.Equal(t, block.Hash(), ReadCanonicalHash(db, 7))
	assert.Equal(t, block.Hash(), ReadHeadBlock(db).Hash())
}

func TestReceiptDerivation(t *testing.T) {
	db := memorydb.New()
	block, receipts := testBlock(t, 3)
	writeCanonical(db, block, receipts)

	got := ReadReceipts(db, block.Hash(), 3, params.AllDevChainProtocolChanges)
	require.Len(t, got, 2)
	for i, r := range got {
		assert.Equal(t, block.Transactions()[i].Hash(), r.TxHash)
		assert.Equal(t, block.Hash(), r.BlockHash)
		assert.Equal(t, uint(i), r.TransactionIndex)
		assert.Equal(t, uint64(21000), r.GasUsed)
		require.Len(t, r.Logs, 1)
		assert.Equal(t, uint(i), r.Logs[0].Index)
	}
}

func TestTransactionLookup(t *testing.T) {
	db := memorydb.New()
	block, receipts := testBlock(t, 5)
	writeCanonical(db, block, receipts)

	want := block.Transactions()[1]
	tx, hash, number, index := ReadTransaction(db, want.Hash())
	require.NotNil(t, tx)
	assert.Equal(t, want.Hash(), tx.Hash())
	assert.Equal(t, block.Hash(), hash)
	assert.Equal(t, uint64(5), number)
	assert.Equal(t, uint64(1), index)

	receipt, _, _, _ := ReadReceipt(db, want.Hash(), params.AllDevChainProtocolChanges)
	require.NotNil(t, receipt)
	assert.Equal(t, want.Hash(), receipt.TxHash)

	missing, _, _, _ := ReadTransaction(db, common.Hash{0x01})
	assert.Nil(t, missing)
}

func TestTransactionLookupAfterRewind(t *testing.T) {
	db := memorydb.New()
	block, receipts := testBlock(t, 4)
	writeCanonical(db, block, receipts)

	hash := block.Transactions()[0].Hash()
	entry := ReadTxLookupEntry(db, hash)
	require.NotNil(t, entry)
	assert.Equal(t, TxLookup{Number: 4, Index: 0}, *entry)

	// A block dropped from the canonical chain hides its transactions even
	// while the index entry is still present.
	DeleteCanonicalHash(db, 4)
	tx, _, _, _ := ReadTransaction(db, hash)
	assert.Nil(t, tx)
	receipt, _, _, _ := ReadReceipt(db, hash, params.AllDevChainProtocolChanges)
	assert.Nil(t, receipt)

	DeleteTxLookupEntry(db, hash)
	assert.Nil(t, ReadTxLookupEntry(db, hash))
}
