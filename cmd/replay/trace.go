package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/mattlabs/triewitness/multiproof"
	"github.com/mattlabs/triewitness/state"
)

// traceFile is the on-disk shape of the --deltas file: the per-account
// execution output a block producer's EVM run would hand to the state
// adapter, plus any oracle entries a branch collapse in this block
// needs. JSON rather than RLP: this is a human/tooling-facing debug
// input, not the wire format the parcel itself uses.
type traceFile struct {
	Accounts []traceAccount `json:"accounts"`
	Oracle   []traceOracle  `json:"oracle,omitempty"`
}

type traceAccount struct {
	Address  common.Address    `json:"address"`
	Balance  string            `json:"balance"`
	Nonce    uint64            `json:"nonce"`
	CodeHash common.Hash       `json:"codeHash"`
	Storage  map[string]string `json:"storage,omitempty"`
}

// traceOracle supplies the RLP a deferred branch collapse needs, keyed by
// the (address, storage key) the collapse occurred at.
type traceOracle struct {
	Address common.Address `json:"address"`
	Key     common.Hash    `json:"key"`
	NodeRLP string         `json:"nodeRLP"`
}

func loadTrace(path string) (map[common.Address]state.AccountDelta, *multiproof.Oracle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var tf traceFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, nil, err
	}

	deltas := make(map[common.Address]state.AccountDelta, len(tf.Accounts))
	for _, ta := range tf.Accounts {
		balance, err := uint256.FromDecimal(ta.Balance)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing balance for %s: %w", ta.Address, err)
		}
		storage := make(map[common.Hash][]byte, len(ta.Storage))
		for k, v := range ta.Storage {
			storage[common.HexToHash(k)] = common.FromHex(v)
		}
		deltas[ta.Address] = state.AccountDelta{
			Address:  ta.Address,
			Balance:  balance,
			Nonce:    ta.Nonce,
			CodeHash: ta.CodeHash,
			Storage:  storage,
		}
	}

	var oracle *multiproof.Oracle
	if len(tf.Oracle) > 0 {
		oracle = multiproof.NewOracle()
		for _, o := range tf.Oracle {
			oracle.Put(o.Address, o.Key, common.FromHex(o.NodeRLP))
		}
	}
	return deltas, oracle, nil
}
