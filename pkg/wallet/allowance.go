package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20 allowance function ABI
const erc20AllowanceABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}]`

// ContractCaller is the read-only subset of a chain client used for allowances
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var (
	allowanceABI     abi.ABI
	allowanceABIErr  error
	allowanceABIOnce sync.Once
)

func parsedAllowanceABI() (abi.ABI, error) {
	allowanceABIOnce.Do(func() {
		allowanceABI, allowanceABIErr = abi.JSON(strings.NewReader(erc20AllowanceABI))
	})
	return allowanceABI, allowanceABIErr
}

// ReadAllowance returns how much of token spender may move on behalf of owner
func ReadAllowance(ctx context.Context, caller ContractCaller, token, owner, spender common.Address) (*big.Int, error) {
	parsedABI, err := parsedAllowanceABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	msg := ethereum.CallMsg{
		To:   &token,
		Data: data,
	}

	result, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call allowance: %w", err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("token %s returned no allowance data", token.Hex())
	}

	out, err := parsedABI.Unpack("allowance", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack allowance: %w", err)
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", out[0])
	}
	return allowance, nil
}
