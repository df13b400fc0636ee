package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event kinds reported by SubscribePositionEvents.
const (
	EventSwap              = "Swap"
	EventIncreaseLiquidity = "IncreaseLiquidity"
	EventDecreaseLiquidity = "DecreaseLiquidity"
	EventCollect           = "Collect"
)

var (
	swapEventID              = poolABI.Events["Swap"].ID
	increaseLiquidityEventID = positionManagerABI.Events["IncreaseLiquidity"].ID
	decreaseLiquidityEventID = positionManagerABI.Events["DecreaseLiquidity"].ID
	collectEventID           = positionManagerABI.Events["Collect"].ID
)

// ParseEventAmounts extracts token id and amounts from position manager
// events emitted by nfpm. Logs from other contracts are ignored; the last
// matching event wins.
func ParseEventAmounts(nfpm common.Address, logs []*types.Log) EventAmounts {
	out := EventAmounts{Amount0: new(big.Int), Amount1: new(big.Int)}
	for _, lg := range logs {
		if lg == nil || lg.Address != nfpm || len(lg.Topics) < 2 {
			continue
		}
		ev, err := positionManagerABI.EventByID(lg.Topics[0])
		if err != nil {
			continue
		}
		values, err := ev.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(values) < 2 {
			continue
		}
		out.TokenID = new(big.Int).SetBytes(lg.Topics[1].Bytes())
		out.Amount0 = toBig(values[len(values)-2])
		out.Amount1 = toBig(values[len(values)-1])
	}
	return out
}

// ClassifyLog names the event carried by a subscribed log.
func ClassifyLog(lg types.Log) string {
	if len(lg.Topics) == 0 {
		return ""
	}
	switch lg.Topics[0] {
	case swapEventID:
		return EventSwap
	case increaseLiquidityEventID:
		return EventIncreaseLiquidity
	case decreaseLiquidityEventID:
		return EventDecreaseLiquidity
	case collectEventID:
		return EventCollect
	}
	return ""
}
