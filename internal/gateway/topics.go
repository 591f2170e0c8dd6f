package gateway

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"dexlens/internal/dex"
)

// DefaultTopics returns the topic0 hashes the pipeline knows how to
// normalize: pool Swap, Mint and Burn plus lending LiquidationCall.
func DefaultTopics() ([]common.Hash, error) {
	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return nil, err
	}
	lendingABI, err := dex.LendingPoolABI()
	if err != nil {
		return nil, err
	}

	topics := make([]common.Hash, 0, 4)
	for _, name := range []string{"Swap", "Mint", "Burn"} {
		event, ok := poolABI.Events[name]
		if !ok {
			return nil, fmt.Errorf("pool abi missing event %s", name)
		}
		topics = append(topics, event.ID)
	}

	event, ok := lendingABI.Events["LiquidationCall"]
	if !ok {
		return nil, fmt.Errorf("lending abi missing event LiquidationCall")
	}
	topics = append(topics, event.ID)

	return topics, nil
}
