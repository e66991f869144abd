package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddresses converts string addresses into common.Address, dropping duplicates
// while keeping the first occurrence's position.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	seen := make(map[common.Address]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addr := common.HexToAddress(input)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// ParseFeeTiers converts v3 fee tiers. Order is the lookup order.
func ParseFeeTiers(inputs []string) ([]uint32, error) {
	tiers := make([]uint32, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		n, err := strconv.ParseUint(input, 10, 24)
		if err != nil {
			return nil, fmt.Errorf("invalid fee tier: %s", input)
		}
		if n == 0 {
			return nil, fmt.Errorf("invalid fee tier: %s", input)
		}
		tiers = append(tiers, uint32(n))
	}
	return tiers, nil
}
