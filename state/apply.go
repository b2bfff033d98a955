package state

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mattlabs/triewitness/internal/trieerr"
	"github.com/mattlabs/triewitness/multiproof"
)

// ApplyChanges replays one block's account deltas against the adapter's
// multiproofs and returns the resulting post-state root. Deltas are
// sorted by address first for deterministic replay.
func (a *Adapter) ApplyChanges(deltas map[common.Address]AccountDelta) (common.Hash, error) {
	addrs := make([]common.Address, 0, len(deltas))
	for addr := range deltas {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i].Bytes(), addrs[j].Bytes()) < 0
	})

	for _, addr := range addrs {
		if err := a.applyAccount(deltas[addr]); err != nil {
			return common.Hash{}, err
		}
	}
	return a.accounts.Root(), nil
}

// applyAccount applies one account's storage and account-record changes:
// every changed storage slot first, then that account's deferred oracle
// tasks deepest first, then the account record itself.
func (a *Adapter) applyAccount(delta AccountDelta) error {
	store, ok := a.storageTries[delta.Address]
	if !ok {
		store = multiproof.New(common.Hash{})
		store.SetLogger(a.logger)
		store.SetBackend(a.backend)
		a.storageTries[delta.Address] = store
	}

	keys := make([]common.Hash, 0, len(delta.Storage))
	for k := range delta.Storage {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i].Bytes(), keys[j].Bytes()) < 0
	})

	var tasks []multiproof.OracleTask
	for _, key := range keys {
		value := delta.Storage[key]
		target := &multiproof.OracleTarget{Address: delta.Address, Key: key}

		var intent multiproof.Intent
		if isZeroValue(value) {
			intent = multiproof.Remove()
		} else {
			intent = multiproof.Modify(value)
		}

		outcome, err := store.Traverse(key.Bytes(), target, intent)
		if err != nil {
			return err
		}
		if outcome.Task != nil {
			tasks = append(tasks, *outcome.Task)
			continue
		}
		if isZeroValue(value) {
			a.forgetKey(delta.Address, key)
		} else {
			a.rememberKey(delta.Address, key)
		}
	}

	if err := a.resolveTasks(delta.Address, store, tasks); err != nil {
		return err
	}

	rec := AccountRecord{
		Nonce:       delta.Nonce,
		Balance:     delta.Balance,
		StorageRoot: store.Root(),
		CodeHash:    delta.CodeHash,
	}
	raw, err := rec.Encode()
	if err != nil {
		return err
	}
	accountPath := crypto.Keccak256(delta.Address.Bytes())
	// Accounts are always Modify, never Remove, even for a
	// self-destructed account: see DESIGN.md, "self-destruct account
	// policy".
	outcome, err := a.accounts.Traverse(accountPath, nil, multiproof.Modify(raw))
	if err != nil {
		return err
	}
	if outcome.Task != nil {
		return trieerr.NewStructural("apply account", "account trie modify unexpectedly produced an oracle task")
	}
	return nil
}

// resolveTasks processes queued branch-collapse tasks deepest first, so
// a shallower task's grandparent (once reached) already reflects every
// deeper change. See oracle.go's ResolveOracleTask doc comment.
func (a *Adapter) resolveTasks(address common.Address, store *multiproof.Store, tasks []multiproof.OracleTask) error {
	if len(tasks) == 0 {
		return nil
	}
	if a.oracle == nil {
		return trieerr.NewNoOracleNode(address, tasks[0].Target.Key)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].TraversalIndex > tasks[j].TraversalIndex
	})

	for _, task := range tasks {
		outcome, err := store.ResolveOracleTask(task, a.oracle)
		if err != nil {
			return err
		}
		if outcome.Task != nil {
			return trieerr.NewStructural("resolve oracle task", "resolving a task unexpectedly produced another task")
		}
		a.forgetKey(address, task.Target.Key)
	}
	return nil
}
