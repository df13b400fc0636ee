package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const positionManagerABIJSON = `[
{"name":"positions","type":"function","stateMutability":"view",
 "inputs":[{"name":"tokenId","type":"uint256"}],
 "outputs":[{"name":"nonce","type":"uint96"},{"name":"operator","type":"address"},
  {"name":"token0","type":"address"},{"name":"token1","type":"address"},{"name":"fee","type":"uint24"},
  {"name":"tickLower","type":"int24"},{"name":"tickUpper","type":"int24"},{"name":"liquidity","type":"uint128"},
  {"name":"feeGrowthInside0LastX128","type":"uint256"},{"name":"feeGrowthInside1LastX128","type":"uint256"},
  {"name":"tokensOwed0","type":"uint128"},{"name":"tokensOwed1","type":"uint128"}]},
{"name":"ownerOf","type":"function","stateMutability":"view",
 "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
{"name":"decreaseLiquidity","type":"function","stateMutability":"payable",
 "inputs":[{"name":"params","type":"tuple","components":[
  {"name":"tokenId","type":"uint256"},{"name":"liquidity","type":"uint128"},
  {"name":"amount0Min","type":"uint256"},{"name":"amount1Min","type":"uint256"},{"name":"deadline","type":"uint256"}]}],
 "outputs":[{"name":"amount0","type":"uint256"},{"name":"amount1","type":"uint256"}]},
{"name":"collect","type":"function","stateMutability":"payable",
 "inputs":[{"name":"params","type":"tuple","components":[
  {"name":"tokenId","type":"uint256"},{"name":"recipient","type":"address"},
  {"name":"amount0Max","type":"uint128"},{"name":"amount1Max","type":"uint128"}]}],
 "outputs":[{"name":"amount0","type":"uint256"},{"name":"amount1","type":"uint256"}]},
{"name":"mint","type":"function","stateMutability":"payable",
 "inputs":[{"name":"params","type":"tuple","components":[
  {"name":"token0","type":"address"},{"name":"token1","type":"address"},{"name":"fee","type":"uint24"},
  {"name":"tickLower","type":"int24"},{"name":"tickUpper","type":"int24"},
  {"name":"amount0Desired","type":"uint256"},{"name":"amount1Desired","type":"uint256"},
  {"name":"amount0Min","type":"uint256"},{"name":"amount1Min","type":"uint256"},
  {"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"}]}],
 "outputs":[{"name":"tokenId","type":"uint256"},{"name":"liquidity","type":"uint128"},
  {"name":"amount0","type":"uint256"},{"name":"amount1","type":"uint256"}]},
{"name":"IncreaseLiquidity","type":"event","anonymous":false,"inputs":[
 {"name":"tokenId","type":"uint256","indexed":true},{"name":"liquidity","type":"uint128","indexed":false},
 {"name":"amount0","type":"uint256","indexed":false},{"name":"amount1","type":"uint256","indexed":false}]},
{"name":"DecreaseLiquidity","type":"event","anonymous":false,"inputs":[
 {"name":"tokenId","type":"uint256","indexed":true},{"name":"liquidity","type":"uint128","indexed":false},
 {"name":"amount0","type":"uint256","indexed":false},{"name":"amount1","type":"uint256","indexed":false}]},
{"name":"Collect","type":"event","anonymous":false,"inputs":[
 {"name":"tokenId","type":"uint256","indexed":true},{"name":"recipient","type":"address","indexed":false},
 {"name":"amount0","type":"uint256","indexed":false},{"name":"amount1","type":"uint256","indexed":false}]}
]`

const poolABIJSON = `[
{"name":"slot0","type":"function","stateMutability":"view","inputs":[],
 "outputs":[{"name":"sqrtPriceX96","type":"uint160"},{"name":"tick","type":"int24"},
  {"name":"observationIndex","type":"uint16"},{"name":"observationCardinality","type":"uint16"},
  {"name":"observationCardinalityNext","type":"uint16"},{"name":"feeProtocol","type":"uint8"},
  {"name":"unlocked","type":"bool"}]},
{"name":"liquidity","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]},
{"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"name":"token1","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"name":"fee","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint24"}]},
{"name":"tickSpacing","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int24"}]},
{"name":"Swap","type":"event","anonymous":false,"inputs":[
 {"name":"sender","type":"address","indexed":true},{"name":"recipient","type":"address","indexed":true},
 {"name":"amount0","type":"int256","indexed":false},{"name":"amount1","type":"int256","indexed":false},
 {"name":"sqrtPriceX96","type":"uint160","indexed":false},{"name":"liquidity","type":"uint128","indexed":false},
 {"name":"tick","type":"int24","indexed":false}]}
]`

const swapRouterABIJSON = `[
{"name":"exactInputSingle","type":"function","stateMutability":"payable",
 "inputs":[{"name":"params","type":"tuple","components":[
  {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},
  {"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},
  {"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},
  {"name":"sqrtPriceLimitX96","type":"uint160"}]}],
 "outputs":[{"name":"amountOut","type":"uint256"}]},
{"name":"exactOutputSingle","type":"function","stateMutability":"payable",
 "inputs":[{"name":"params","type":"tuple","components":[
  {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},
  {"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},
  {"name":"amountOut","type":"uint256"},{"name":"amountInMaximum","type":"uint256"},
  {"name":"sqrtPriceLimitX96","type":"uint160"}]}],
 "outputs":[{"name":"amountIn","type":"uint256"}]}
]`

const erc20ABIJSON = `[
{"name":"balanceOf","type":"function","stateMutability":"view",
 "inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"allowance","type":"function","stateMutability":"view",
 "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"name":"approve","type":"function","stateMutability":"nonpayable",
 "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"name":"symbol","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]}
]`

var (
	positionManagerABI = mustParseABI(positionManagerABIJSON)
	poolABI            = mustParseABI(poolABIJSON)
	swapRouterABI      = mustParseABI(swapRouterABIJSON)
	erc20ABI           = mustParseABI(erc20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
