package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

func TestDecodeV2Swap(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := pairABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(0),
		big.NewInt(1_000000000000000000),
		big.NewInt(5000_000000),
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	txHash := common.HexToHash("0xabc")
	log := types.Log{
		Address:     pairAddr,
		Topics:      []common.Hash{pairABI.Events["Swap"].ID, topicFromAddress(sender), topicFromAddress(to)},
		Data:        data,
		BlockNumber: 42,
		TxHash:      txHash,
	}

	swap, err := DecodeV2Swap(log)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.Amount0In.Sign() != 0 || swap.Amount1In.String() != "1000000000000000000" {
		t.Fatalf("in amounts mismatch: %+v", swap)
	}
	if swap.Amount0Out.String() != "5000000000" || swap.Amount1Out.Sign() != 0 {
		t.Fatalf("out amounts mismatch: %+v", swap)
	}
	if swap.BlockNumber != 42 || swap.TxHash != txHash.Hex() {
		t.Fatalf("log position mismatch: %+v", swap)
	}
}

func TestDecodeV3Swap(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	log := types.Log{
		Address:     poolAddr,
		Topics:      []common.Hash{poolABI.Events["Swap"].ID, topicFromAddress(sender), topicFromAddress(recipient)},
		Data:        data,
		BlockNumber: 7,
	}

	swap, err := DecodeV3Swap(log)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.Amount0.String() != "-1000" || swap.Amount1.String() != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.SqrtPriceX96.String() != "123456789" || swap.Liquidity.String() != "987654321" {
		t.Fatalf("price fields mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
}

func TestDecodeSwapRejectsForeignTopic(t *testing.T) {
	v3Topic, err := V3SwapTopic()
	if err != nil {
		t.Fatalf("topic: %v", err)
	}
	v2Topic, err := V2SwapTopic()
	if err != nil {
		t.Fatalf("topic: %v", err)
	}
	if v2Topic == v3Topic {
		t.Fatalf("swap topics must differ")
	}

	if _, err := DecodeV2Swap(types.Log{Topics: []common.Hash{v3Topic}}); err == nil {
		t.Fatalf("expected error for v3 topic on v2 decoder")
	}
	if _, err := DecodeV3Swap(types.Log{}); err == nil {
		t.Fatalf("expected error for log without topics")
	}
}
